package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradilov/ringbus"
	"github.com/aradilov/ringbus/internal/logger"
)

func TestCollector(t *testing.T) {
	reg := ringbus.NewRegistry(ringbus.WithLogger(logger.Discard()))
	defer reg.Close()

	topic, err := reg.GetByteTopic("/gps", 2)
	require.NoError(t, err)
	for i := byte(0); i < 3; i++ {
		_, err := topic.Publish([]byte{i})
		require.NoError(t, err)
	}
	_, _, ok := topic.TryReceive()
	require.True(t, ok)

	c := NewCollector(reg, nil)
	expected := `
# HELP ringbus_topic_capacity Ring depth of the topic.
# TYPE ringbus_topic_capacity gauge
ringbus_topic_capacity{topic="/gps"} 2
# HELP ringbus_topic_dropped_total Payloads overwritten before anyone received them.
# TYPE ringbus_topic_dropped_total counter
ringbus_topic_dropped_total{topic="/gps"} 1
# HELP ringbus_topic_latest_epoch Epoch of the most recent publish.
# TYPE ringbus_topic_latest_epoch gauge
ringbus_topic_latest_epoch{topic="/gps"} 3
# HELP ringbus_topic_len Unread payloads currently held.
# TYPE ringbus_topic_len gauge
ringbus_topic_len{topic="/gps"} 1
# HELP ringbus_topic_published_total Payloads published to the topic.
# TYPE ringbus_topic_published_total counter
ringbus_topic_published_total{topic="/gps"} 3
# HELP ringbus_topic_received_total Payloads consumed from the topic.
# TYPE ringbus_topic_received_total counter
ringbus_topic_received_total{topic="/gps"} 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}

func TestCollectorRegisters(t *testing.T) {
	reg := ringbus.NewRegistry(ringbus.WithLogger(logger.Discard()))
	defer reg.Close()
	for _, name := range []string{"/a", "/b"} {
		_, err := reg.GetByteTopic(name, 4)
		require.NoError(t, err)
	}

	promReg := prometheus.NewPedanticRegistry()
	require.NoError(t, promReg.Register(NewCollector(reg, prometheus.Labels{"registry": "local"})))

	assert.Equal(t, 12, testutil.CollectAndCount(NewCollector(reg, nil)))
	n, err := testutil.GatherAndCount(promReg, "ringbus_topic_len")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
