package scte35

// spliceNull is a no-op command used as a heartbeat.
type spliceNull struct{}

func (cmd *spliceNull) Type() uint32 { return SpliceNullType }

func (cmd *spliceNull) decode(_ []byte) error { return nil }

func (cmd *spliceNull) encode() ([]byte, error) { return nil, nil }

func (cmd *spliceNull) commandLength() int { return 0 }
