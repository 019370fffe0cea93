package ir

// ChannelKind is the direction of a channel relative to the proc network.
type ChannelKind int

const (
	// SendOnly channels carry values out of the network.
	SendOnly ChannelKind = iota

	// ReceiveOnly channels carry values into the network from the
	// environment.
	ReceiveOnly

	// SendReceive channels are internal, with exactly one sending and one
	// receiving proc.
	SendReceive
)

func (k ChannelKind) String() string {
	switch k {
	case SendOnly:
		return "send-only"
	case ReceiveOnly:
		return "receive-only"
	case SendReceive:
		return "send-receive"
	}

	return "unknown"
}

// A ChannelField is one named, typed element of a channel's payload.
type ChannelField struct {
	Name string
	Type *Type
}

// A Channel is a typed, directional, point-to-point communication conduit.
// The payload carried per transaction is the tuple of the field values.
// Channels are immutable after creation and owned by their Package.
type Channel struct {
	name   string
	id     int64
	kind   ChannelKind
	fields []ChannelField
}

// Name returns the channel name, unique within its package.
func (c *Channel) Name() string {
	return c.name
}

// ID returns the package-scoped channel id.
func (c *Channel) ID() int64 {
	return c.id
}

// Kind returns the channel direction.
func (c *Channel) Kind() ChannelKind {
	return c.kind
}

// Fields returns the payload fields in declaration order.
func (c *Channel) Fields() []ChannelField {
	fields := make([]ChannelField, len(c.fields))
	copy(fields, c.fields)
	return fields
}

// PayloadType returns the tuple type of one transaction on the channel.
func (c *Channel) PayloadType() *Type {
	elems := make([]*Type, len(c.fields))
	for i, f := range c.fields {
		elems[i] = f.Type
	}

	return TupleType(elems...)
}
