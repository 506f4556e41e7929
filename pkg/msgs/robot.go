package msgs

import (
	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/robofleet/pkg/framework"
)

// TypeID Groups
const (
	GroupLink     uint32 = 0x00010000
	GroupMotion   uint32 = 0x00020000
	GroupFirmware uint32 = 0x00030000
	GroupOperator uint32 = 0x00100000
)

// Predefined TypeIDs
const (
	PingTypeID               uint32 = GroupLink | 0x0000
	PongTypeID               uint32 = GroupLink | TypeIDMaskReply | 0x0000
	RobotIdentityTypeID      uint32 = GroupLink | TypeIDKindEvent | 0x0001
	UtilizationTypeID        uint32 = GroupLink | TypeIDKindEvent | 0x0002
	TargetVelocityTypeID     uint32 = GroupMotion | 0x0000
	MotorsOverrideTypeID     uint32 = GroupMotion | 0x0001
	PwmOverrideTypeID        uint32 = GroupMotion | 0x0002
	MotorConfigTypeID        uint32 = GroupMotion | 0x0003
	PidSettingsTypeID        uint32 = GroupMotion | 0x0004
	ResetAngleTypeID         uint32 = GroupMotion | 0x0005
	MotorControlStatusTypeID uint32 = GroupMotion | TypeIDKindEvent | 0x0000
	SensorsTypeID            uint32 = GroupMotion | TypeIDKindEvent | 0x0001
	FirmwareRequestTypeID    uint32 = GroupFirmware | 0x0000
	FirmwareReplyTypeID      uint32 = GroupFirmware | TypeIDMaskReply | 0x0000
)

// Ping checks the link is alive.
type Ping struct {
}

// NewMessage implements Message.
func (m *Ping) NewMessage() fx.Message { return &Ping{} }

// TypeID implements SerializableMessage.
func (m *Ping) TypeID() uint32 { return PingTypeID }

// Serializable implements SerializableMessage.
func (m *Ping) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Ping) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Ping) Reset() { *m = Ping{} }

// String implements proto.Message.
func (m *Ping) String() string { return proto.CompactTextString(m) }

// Pong answers Ping.
type Pong struct {
}

// NewMessage implements Message.
func (m *Pong) NewMessage() fx.Message { return &Pong{} }

// TypeID implements SerializableMessage.
func (m *Pong) TypeID() uint32 { return PongTypeID }

// Serializable implements SerializableMessage.
func (m *Pong) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Pong) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Pong) Reset() { *m = Pong{} }

// String implements proto.Message.
func (m *Pong) String() string { return proto.CompactTextString(m) }

// RobotIdentity is the first message a robot sends after accepting a connection.
type RobotIdentity struct {
	Name string `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
}

// NewMessage implements Message.
func (m *RobotIdentity) NewMessage() fx.Message { return &RobotIdentity{} }

// TypeID implements SerializableMessage.
func (m *RobotIdentity) TypeID() uint32 { return RobotIdentityTypeID }

// Serializable implements SerializableMessage.
func (m *RobotIdentity) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *RobotIdentity) ProtoMessage() {}

// Reset implements proto.Message.
func (m *RobotIdentity) Reset() { *m = RobotIdentity{} }

// String implements proto.Message.
func (m *RobotIdentity) String() string { return proto.CompactTextString(m) }

// Utilization reports how busy a robot task is, as a ratio of wall time.
type Utilization struct {
	Task  uint32  `protobuf:"varint,1,opt,name=task,proto3" json:"task,omitempty"`
	Ratio float32 `protobuf:"fixed32,2,opt,name=ratio,proto3" json:"ratio,omitempty"`
}

// NewMessage implements Message.
func (m *Utilization) NewMessage() fx.Message { return &Utilization{} }

// TypeID implements SerializableMessage.
func (m *Utilization) TypeID() uint32 { return UtilizationTypeID }

// Serializable implements SerializableMessage.
func (m *Utilization) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Utilization) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Utilization) Reset() { *m = Utilization{} }

// String implements proto.Message.
func (m *Utilization) String() string { return proto.CompactTextString(m) }

// TargetVelocity commands the robot body velocity.
// Linear components are in grid units per second, Angular in radians per second.
type TargetVelocity struct {
	LinearX float32 `protobuf:"fixed32,1,opt,name=linear_x,json=linearX,proto3" json:"linear_x,omitempty"`
	LinearY float32 `protobuf:"fixed32,2,opt,name=linear_y,json=linearY,proto3" json:"linear_y,omitempty"`
	Angular float32 `protobuf:"fixed32,3,opt,name=angular,proto3" json:"angular,omitempty"`
}

// NewMessage implements Message.
func (m *TargetVelocity) NewMessage() fx.Message { return &TargetVelocity{} }

// TypeID implements SerializableMessage.
func (m *TargetVelocity) TypeID() uint32 { return TargetVelocityTypeID }

// Serializable implements SerializableMessage.
func (m *TargetVelocity) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *TargetVelocity) ProtoMessage() {}

// Reset implements proto.Message.
func (m *TargetVelocity) Reset() { *m = TargetVelocity{} }

// String implements proto.Message.
func (m *TargetVelocity) String() string { return proto.CompactTextString(m) }

// MotorOverride pins the set point of one motor.
type MotorOverride struct {
	Motor uint32  `protobuf:"varint,1,opt,name=motor,proto3" json:"motor,omitempty"`
	Speed float32 `protobuf:"fixed32,2,opt,name=speed,proto3" json:"speed,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *MotorOverride) ProtoMessage() {}

// Reset implements proto.Message.
func (m *MotorOverride) Reset() { *m = MotorOverride{} }

// String implements proto.Message.
func (m *MotorOverride) String() string { return proto.CompactTextString(m) }

// MotorsOverride replaces all motor set point overrides.
// An empty list clears them.
type MotorsOverride struct {
	Overrides []*MotorOverride `protobuf:"bytes,1,rep,name=overrides,proto3" json:"overrides,omitempty"`
}

// NewMessage implements Message.
func (m *MotorsOverride) NewMessage() fx.Message { return &MotorsOverride{} }

// TypeID implements SerializableMessage.
func (m *MotorsOverride) TypeID() uint32 { return MotorsOverrideTypeID }

// Serializable implements SerializableMessage.
func (m *MotorsOverride) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *MotorsOverride) ProtoMessage() {}

// Reset implements proto.Message.
func (m *MotorsOverride) Reset() { *m = MotorsOverride{} }

// String implements proto.Message.
func (m *MotorsOverride) String() string { return proto.CompactTextString(m) }

// PwmPinOverride pins the duty of one PWM pin of a motor.
type PwmPinOverride struct {
	Motor uint32 `protobuf:"varint,1,opt,name=motor,proto3" json:"motor,omitempty"`
	Pin   uint32 `protobuf:"varint,2,opt,name=pin,proto3" json:"pin,omitempty"`
	Duty  uint32 `protobuf:"varint,3,opt,name=duty,proto3" json:"duty,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *PwmPinOverride) ProtoMessage() {}

// Reset implements proto.Message.
func (m *PwmPinOverride) Reset() { *m = PwmPinOverride{} }

// String implements proto.Message.
func (m *PwmPinOverride) String() string { return proto.CompactTextString(m) }

// PwmOverride replaces all PWM pin overrides.
type PwmOverride struct {
	Overrides []*PwmPinOverride `protobuf:"bytes,1,rep,name=overrides,proto3" json:"overrides,omitempty"`
}

// NewMessage implements Message.
func (m *PwmOverride) NewMessage() fx.Message { return &PwmOverride{} }

// TypeID implements SerializableMessage.
func (m *PwmOverride) TypeID() uint32 { return PwmOverrideTypeID }

// Serializable implements SerializableMessage.
func (m *PwmOverride) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *PwmOverride) ProtoMessage() {}

// Reset implements proto.Message.
func (m *PwmOverride) Reset() { *m = PwmOverride{} }

// String implements proto.Message.
func (m *PwmOverride) String() string { return proto.CompactTextString(m) }

// MotorConfig maps each motor to its forward and backward PWM pins.
// Pins is flattened as [m0.fwd, m0.back, m1.fwd, m1.back, ...].
type MotorConfig struct {
	Pins []uint32 `protobuf:"varint,1,rep,packed,name=pins,proto3" json:"pins,omitempty"`
}

// NewMessage implements Message.
func (m *MotorConfig) NewMessage() fx.Message { return &MotorConfig{} }

// TypeID implements SerializableMessage.
func (m *MotorConfig) TypeID() uint32 { return MotorConfigTypeID }

// Serializable implements SerializableMessage.
func (m *MotorConfig) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *MotorConfig) ProtoMessage() {}

// Reset implements proto.Message.
func (m *MotorConfig) Reset() { *m = MotorConfig{} }

// String implements proto.Message.
func (m *MotorConfig) String() string { return proto.CompactTextString(m) }

// PidSettings updates the gains of the wheel speed controllers.
type PidSettings struct {
	P float32 `protobuf:"fixed32,1,opt,name=p,proto3" json:"p,omitempty"`
	I float32 `protobuf:"fixed32,2,opt,name=i,proto3" json:"i,omitempty"`
	D float32 `protobuf:"fixed32,3,opt,name=d,proto3" json:"d,omitempty"`
}

// NewMessage implements Message.
func (m *PidSettings) NewMessage() fx.Message { return &PidSettings{} }

// TypeID implements SerializableMessage.
func (m *PidSettings) TypeID() uint32 { return PidSettingsTypeID }

// Serializable implements SerializableMessage.
func (m *PidSettings) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *PidSettings) ProtoMessage() {}

// Reset implements proto.Message.
func (m *PidSettings) Reset() { *m = PidSettings{} }

// String implements proto.Message.
func (m *PidSettings) String() string { return proto.CompactTextString(m) }

// ResetAngle zeroes the heading reported by the IMU.
type ResetAngle struct {
}

// NewMessage implements Message.
func (m *ResetAngle) NewMessage() fx.Message { return &ResetAngle{} }

// TypeID implements SerializableMessage.
func (m *ResetAngle) TypeID() uint32 { return ResetAngleTypeID }

// Serializable implements SerializableMessage.
func (m *ResetAngle) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *ResetAngle) ProtoMessage() {}

// Reset implements proto.Message.
func (m *ResetAngle) Reset() { *m = ResetAngle{} }

// String implements proto.Message.
func (m *ResetAngle) String() string { return proto.CompactTextString(m) }

// MotorControlStatus is the periodic report of the motors loop.
type MotorControlStatus struct {
	ElapsedMs uint64    `protobuf:"varint,1,opt,name=elapsed_ms,json=elapsedMs,proto3" json:"elapsed_ms,omitempty"`
	Pwm       []uint32  `protobuf:"varint,2,rep,packed,name=pwm,proto3" json:"pwm,omitempty"`
	Measured  []float32 `protobuf:"fixed32,3,rep,packed,name=measured,proto3" json:"measured,omitempty"`
	SetPoints []float32 `protobuf:"fixed32,4,rep,packed,name=set_points,json=setPoints,proto3" json:"set_points,omitempty"`
}

// NewMessage implements Message.
func (m *MotorControlStatus) NewMessage() fx.Message { return &MotorControlStatus{} }

// TypeID implements SerializableMessage.
func (m *MotorControlStatus) TypeID() uint32 { return MotorControlStatusTypeID }

// Serializable implements SerializableMessage.
func (m *MotorControlStatus) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *MotorControlStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *MotorControlStatus) Reset() { *m = MotorControlStatus{} }

// String implements proto.Message.
func (m *MotorControlStatus) String() string { return proto.CompactTextString(m) }

// Sensors reports the latest peripheral readings.
// Negative distances mean the sensor has no reading.
type Sensors struct {
	Angle     float32   `protobuf:"fixed32,1,opt,name=angle,proto3" json:"angle,omitempty"`
	AngleOk   bool      `protobuf:"varint,2,opt,name=angle_ok,json=angleOk,proto3" json:"angle_ok,omitempty"`
	Distances []float32 `protobuf:"fixed32,3,rep,packed,name=distances,proto3" json:"distances,omitempty"`
	Battery   float32   `protobuf:"fixed32,4,opt,name=battery,proto3" json:"battery,omitempty"`
}

// NewMessage implements Message.
func (m *Sensors) NewMessage() fx.Message { return &Sensors{} }

// TypeID implements SerializableMessage.
func (m *Sensors) TypeID() uint32 { return SensorsTypeID }

// Serializable implements SerializableMessage.
func (m *Sensors) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Sensors) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Sensors) Reset() { *m = Sensors{} }

// String implements proto.Message.
func (m *Sensors) String() string { return proto.CompactTextString(m) }
