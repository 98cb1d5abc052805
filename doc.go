// Package ringbus is a brokerless publish/subscribe transport for small,
// high-rate binary messages such as sensor samples and control frames.
//
// A Registry maps topic names to topics. Every topic is a bounded ring with
// freshness-biased overflow: producers never block, and when the ring is full
// the oldest unread entry is overwritten. Each publish is stamped with an epoch
// that starts at 1 and grows by one per publish, so consumers can detect loss.
//
//	reg := ringbus.NewRegistry()
//	defer reg.Close()
//
//	imu, _ := reg.GetByteTopic("/imu", 8)
//	epoch, _ := imu.Publish(sample)
//
//	same, _ := reg.GetByteTopic("/imu", 8) // same topic as imu
//	if payload, epoch, ok := same.TryReceive(); ok {
//		...
//	}
//
// TryReceive consumes the oldest entry; PeekLatest returns the newest one
// without consuming it. Absence of data is reported with ok == false and is not
// an error. Package shm provides the same API over shared memory so that
// separate processes can attach to one topic.
package ringbus
