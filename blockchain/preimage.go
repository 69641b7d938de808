package blockchain

import (
	"fmt"
	"strconv"
	"strings"
)

// PreimageLayout selects how the block fields are joined before hashing.
type PreimageLayout int

const (
	// ConcatLayout joins nonce, height, parent hash, payload and difficulty
	// with no separators. Adjacent variable-length fields can alias.
	ConcatLayout PreimageLayout = iota
	// LengthPrefixedLayout writes every field as "<len>:<field>".
	LengthPrefixedLayout
)

func (l PreimageLayout) String() string {
	switch l {
	case ConcatLayout:
		return "concat"
	case LengthPrefixedLayout:
		return "length_prefixed"
	default:
		return "unknown"
	}
}

func ParsePreimageLayout(s string) (PreimageLayout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "concat":
		return ConcatLayout, nil
	case "length_prefixed", "length-prefixed":
		return LengthPrefixedLayout, nil
	default:
		return ConcatLayout, fmt.Errorf("unknown preimage layout %q", s)
	}
}

// preimage caches the nonce-independent tail; only the nonce varies while mining.
type preimage struct {
	layout PreimageLayout
	tail   string
}

func newPreimage(layout PreimageLayout, height uint64, parentHash, payload string, difficulty int) preimage {
	fields := []string{
		strconv.FormatUint(height, 10),
		parentHash,
		payload,
		strconv.Itoa(difficulty),
	}
	var sb strings.Builder
	for _, f := range fields {
		writeField(&sb, layout, f)
	}
	return preimage{layout: layout, tail: sb.String()}
}

func (p preimage) build(nonce string) string {
	var sb strings.Builder
	sb.Grow(len(nonce) + len(p.tail) + 8)
	writeField(&sb, p.layout, nonce)
	sb.WriteString(p.tail)
	return sb.String()
}

func writeField(sb *strings.Builder, layout PreimageLayout, field string) {
	if layout == LengthPrefixedLayout {
		sb.WriteString(strconv.Itoa(len(field)))
		sb.WriteByte(':')
	}
	sb.WriteString(field)
}
