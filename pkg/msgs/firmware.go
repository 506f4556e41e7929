package msgs

import (
	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/robofleet/pkg/framework"
)

// FirmwareOp is the firmware update operation carried by
// FirmwareRequest and echoed by FirmwareReply.
type FirmwareOp int32

// Firmware operations.
const (
	FirmwareOpNone FirmwareOp = iota
	FirmwareOpReady
	FirmwareOpWritePart
	FirmwareOpHash
	FirmwareOpMarkUpdated
	FirmwareOpIsSwapped
	FirmwareOpReboot
	FirmwareOpMarkBooted
	FirmwareOpCancel
)

var firmwareOpNames = map[FirmwareOp]string{
	FirmwareOpNone:        "none",
	FirmwareOpReady:       "ready",
	FirmwareOpWritePart:   "write-part",
	FirmwareOpHash:        "hash",
	FirmwareOpMarkUpdated: "mark-updated",
	FirmwareOpIsSwapped:   "is-swapped",
	FirmwareOpReboot:      "reboot",
	FirmwareOpMarkBooted:  "mark-booted",
	FirmwareOpCancel:      "cancel",
}

func (op FirmwareOp) String() string {
	if name, ok := firmwareOpNames[op]; ok {
		return name
	}
	return "unknown"
}

// FirmwareRequest asks the robot to perform one firmware operation.
// For FirmwareOpWritePart the chunk follows as a RawBytes frame.
type FirmwareRequest struct {
	Op     FirmwareOp `protobuf:"varint,1,opt,name=op,proto3" json:"op,omitempty"`
	Offset uint32     `protobuf:"varint,2,opt,name=offset,proto3" json:"offset,omitempty"`
	Length uint32     `protobuf:"varint,3,opt,name=length,proto3" json:"length,omitempty"`
}

// NewMessage implements Message.
func (m *FirmwareRequest) NewMessage() fx.Message { return &FirmwareRequest{} }

// TypeID implements SerializableMessage.
func (m *FirmwareRequest) TypeID() uint32 { return FirmwareRequestTypeID }

// Serializable implements SerializableMessage.
func (m *FirmwareRequest) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *FirmwareRequest) ProtoMessage() {}

// Reset implements proto.Message.
func (m *FirmwareRequest) Reset() { *m = FirmwareRequest{} }

// String implements proto.Message.
func (m *FirmwareRequest) String() string { return proto.CompactTextString(m) }

// FirmwareReply confirms a FirmwareRequest.
type FirmwareReply struct {
	Op      FirmwareOp `protobuf:"varint,1,opt,name=op,proto3" json:"op,omitempty"`
	Offset  uint32     `protobuf:"varint,2,opt,name=offset,proto3" json:"offset,omitempty"`
	Length  uint32     `protobuf:"varint,3,opt,name=length,proto3" json:"length,omitempty"`
	Hash    []byte     `protobuf:"bytes,4,opt,name=hash,proto3" json:"hash,omitempty"`
	Swapped bool       `protobuf:"varint,5,opt,name=swapped,proto3" json:"swapped,omitempty"`
	Error   string     `protobuf:"bytes,6,opt,name=error,proto3" json:"error,omitempty"`
}

// NewMessage implements Message.
func (m *FirmwareReply) NewMessage() fx.Message { return &FirmwareReply{} }

// TypeID implements SerializableMessage.
func (m *FirmwareReply) TypeID() uint32 { return FirmwareReplyTypeID }

// Serializable implements SerializableMessage.
func (m *FirmwareReply) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *FirmwareReply) ProtoMessage() {}

// Reset implements proto.Message.
func (m *FirmwareReply) Reset() { *m = FirmwareReply{} }

// String implements proto.Message.
func (m *FirmwareReply) String() string { return proto.CompactTextString(m) }
