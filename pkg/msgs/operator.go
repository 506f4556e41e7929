package msgs

import (
	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/robofleet/pkg/framework"
)

// Operator TypeIDs
const (
	OperatorCommandTypeID uint32 = GroupOperator | 0x0000
	RobotStatusTypeID     uint32 = GroupOperator | TypeIDKindEvent | 0x0000
)

// OperatorOp is the action requested by an operator console.
type OperatorOp int32

// Operator actions.
const (
	OperatorOpNone OperatorOp = iota
	OperatorOpStartOta
	OperatorOpConfirmOta
	OperatorOpCancelOta
	OperatorOpClearOtaHistory
	OperatorOpVelocity
)

// OperatorCommand is sent by operator consoles to the coordinator.
type OperatorCommand struct {
	Robot    string          `protobuf:"bytes,1,opt,name=robot,proto3" json:"robot,omitempty"`
	Op       OperatorOp      `protobuf:"varint,2,opt,name=op,proto3" json:"op,omitempty"`
	Velocity *TargetVelocity `protobuf:"bytes,3,opt,name=velocity,proto3" json:"velocity,omitempty"`
}

// NewMessage implements Message.
func (m *OperatorCommand) NewMessage() fx.Message { return &OperatorCommand{} }

// TypeID implements SerializableMessage.
func (m *OperatorCommand) TypeID() uint32 { return OperatorCommandTypeID }

// Serializable implements SerializableMessage.
func (m *OperatorCommand) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *OperatorCommand) ProtoMessage() {}

// Reset implements proto.Message.
func (m *OperatorCommand) Reset() { *m = OperatorCommand{} }

// String implements proto.Message.
func (m *OperatorCommand) String() string { return proto.CompactTextString(m) }

// OtaStepRecord is one entry of an update's progress log.
type OtaStepRecord struct {
	Step      uint32 `protobuf:"varint,1,opt,name=step,proto3" json:"step,omitempty"`
	Name      string `protobuf:"bytes,2,opt,name=name,proto3" json:"name,omitempty"`
	Received  uint32 `protobuf:"varint,3,opt,name=received,proto3" json:"received,omitempty"`
	Total     uint32 `protobuf:"varint,4,opt,name=total,proto3" json:"total,omitempty"`
	Outcome   uint32 `protobuf:"varint,5,opt,name=outcome,proto3" json:"outcome,omitempty"`
	ElapsedMs uint64 `protobuf:"varint,6,opt,name=elapsed_ms,json=elapsedMs,proto3" json:"elapsed_ms,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *OtaStepRecord) ProtoMessage() {}

// Reset implements proto.Message.
func (m *OtaStepRecord) Reset() { *m = OtaStepRecord{} }

// String implements proto.Message.
func (m *OtaStepRecord) String() string { return proto.CompactTextString(m) }

// RobotStatus is published by the coordinator for each known robot.
type RobotStatus struct {
	Robot      string           `protobuf:"bytes,1,opt,name=robot,proto3" json:"robot,omitempty"`
	Connected  bool             `protobuf:"varint,2,opt,name=connected,proto3" json:"connected,omitempty"`
	OtaCurrent *OtaStepRecord   `protobuf:"bytes,3,opt,name=ota_current,json=otaCurrent,proto3" json:"ota_current,omitempty"`
	OtaHistory []*OtaStepRecord `protobuf:"bytes,4,rep,name=ota_history,json=otaHistory,proto3" json:"ota_history,omitempty"`
	Sensors    *Sensors         `protobuf:"bytes,5,opt,name=sensors,proto3" json:"sensors,omitempty"`
}

// NewMessage implements Message.
func (m *RobotStatus) NewMessage() fx.Message { return &RobotStatus{} }

// TypeID implements SerializableMessage.
func (m *RobotStatus) TypeID() uint32 { return RobotStatusTypeID }

// Serializable implements SerializableMessage.
func (m *RobotStatus) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *RobotStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *RobotStatus) Reset() { *m = RobotStatus{} }

// String implements proto.Message.
func (m *RobotStatus) String() string { return proto.CompactTextString(m) }
