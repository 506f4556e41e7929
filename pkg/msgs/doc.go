// Package msgs defines the structured payloads exchanged between robots,
// the coordinator and operator consoles.
package msgs

// Every message is carried inside a Typed envelope: a type ID from
// MessageTypes plus the protobuf encoding of the message itself.
//
// Direction is encoded in the type ID:
//   - commands (kind bit clear) flow towards a robot,
//   - replies (reply bit set) answer a specific command,
//   - events (kind bit set) are unsolicited reports from a robot.
