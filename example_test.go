package ringbus_test

import (
	"fmt"

	"github.com/aradilov/ringbus"
)

func ExampleRegistry() {
	reg := ringbus.NewRegistry()
	defer reg.Close()

	producer, _ := reg.GetByteTopic("/gps", 3)
	consumer, _ := reg.GetByteTopic("/gps", 3)

	for i := byte(1); i <= 5; i++ {
		_, _ = producer.Publish([]byte{i})
	}

	latest, epoch, _ := consumer.PeekLatest()
	fmt.Println("latest", latest, "epoch", epoch)

	for {
		payload, epoch, ok := consumer.TryReceive()
		if !ok {
			break
		}
		fmt.Println(payload, epoch)
	}
	// Output:
	// latest [5] epoch 5
	// [3] 3
	// [4] 4
	// [5] 5
}
