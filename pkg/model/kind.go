package model

//go:generate go run github.com/dmarkham/enumer -type Kind -trimprefix Kind -transform lower -output kind.gen.go

// Kind is the semantic type of a scalar property. It drives value coercion
// on update.
type Kind int

const (
	KindStr Kind = iota
	KindInt
	KindBool
	KindFloat
	KindDict
)
