package param

import (
	"strconv"
	"strings"

	"github.com/daedaluz/dmxrdm/driverr"
	"github.com/daedaluz/dmxrdm/rdm"
)

// fieldKind tags one element of a parsed format string (§4.3).
type fieldKind int

const (
	fieldByte fieldKind = iota
	fieldWord
	fieldDword
	fieldUID
	fieldOptionalUID
	fieldASCII
	fieldLiteral
)

type field struct {
	kind    fieldKind
	literal []byte
}

// fixedSize returns the field's wire size, or -1 for the variable-length
// trailing kinds (ASCII, optional UID).
func (f field) fixedSize() int {
	switch f.kind {
	case fieldByte:
		return 1
	case fieldWord:
		return 2
	case fieldDword:
		return 4
	case fieldUID:
		return 6
	case fieldOptionalUID:
		return -1
	case fieldASCII:
		return -1
	case fieldLiteral:
		return len(f.literal)
	}
	return 0
}

// parseFormat turns a format string into its field list and reports
// whether it ends with the single-instance anchor '$'.
func parseFormat(format string) (fields []field, anchored bool, err error) {
	i := 0
	for i < len(format) {
		c := format[i]
		switch c {
		case 'b', 'B':
			fields = append(fields, field{kind: fieldByte})
			i++
		case 'w', 'W':
			fields = append(fields, field{kind: fieldWord})
			i++
		case 'd', 'D':
			fields = append(fields, field{kind: fieldDword})
			i++
		case 'u', 'U':
			fields = append(fields, field{kind: fieldUID})
			i++
		case 'v', 'V':
			if i != len(format)-1 && format[i+1] != '$' {
				return nil, false, driverr.New(driverr.InvalidArg, "'v' (optional UID) only valid at end of format %q", format)
			}
			fields = append(fields, field{kind: fieldOptionalUID})
			i++
		case 'a', 'A':
			if i != len(format)-1 && format[i+1] != '$' {
				return nil, false, driverr.New(driverr.InvalidArg, "'a' (ASCII) only valid at end of format %q", format)
			}
			fields = append(fields, field{kind: fieldASCII})
			i++
		case '$':
			if i != len(format)-1 {
				return nil, false, driverr.New(driverr.InvalidArg, "'$' must terminate format %q", format)
			}
			anchored = true
			i++
		case '#':
			j := i + 1
			for j < len(format) && isHexDigit(format[j]) {
				j++
			}
			hexDigits := format[i+1 : j]
			if len(hexDigits)%2 != 0 {
				return nil, false, driverr.New(driverr.InvalidArg, "literal %q has odd hex digit count", hexDigits)
			}
			lit := make([]byte, 0, len(hexDigits)/2)
			for k := 0; k < len(hexDigits); k += 2 {
				v, perr := strconv.ParseUint(hexDigits[k:k+2], 16, 8)
				if perr != nil {
					return nil, false, driverr.Wrap(driverr.InvalidArg, perr)
				}
				lit = append(lit, byte(v))
			}
			fields = append(fields, field{kind: fieldLiteral, literal: lit})
			i = j
		default:
			return nil, false, driverr.New(driverr.InvalidArg, "unknown format character %q in %q", string(c), format)
		}
	}
	return fields, anchored, nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Value is one decoded field: Byte/Word/Dword hold the numeric value in
// Num, UID holds the parsed UID, ASCII holds Str.
type Value struct {
	Kind fieldKind
	Num  uint32
	UID  rdm.UID
	Str  string
}

// instanceSize returns the fixed byte width of one repeated instance of
// fields (fields containing only fixed-size, non-trailing-variable
// kinds), or -1 if fields contains a variable trailing field.
func instanceSize(fields []field) int {
	total := 0
	for _, f := range fields {
		sz := f.fixedSize()
		if sz < 0 {
			return -1
		}
		total += sz
	}
	return total
}

// Codec serializes/deserializes RDM parameter data per a format string.
type Codec struct {
	Format string
}

// Encode serializes one instance of values (in field order, skipping
// literal fields which need no argument) according to c.Format.
func (c Codec) Encode(values []Value) ([]byte, error) {
	fields, _, err := parseFormat(c.Format)
	if err != nil {
		return nil, err
	}
	var out []byte
	vi := 0
	for _, f := range fields {
		switch f.kind {
		case fieldLiteral:
			out = append(out, f.literal...)
			continue
		}
		if vi >= len(values) {
			return nil, driverr.New(driverr.InvalidArg, "not enough values for format %q", c.Format)
		}
		v := values[vi]
		vi++
		switch f.kind {
		case fieldByte:
			out = append(out, byte(v.Num))
		case fieldWord:
			out = append(out, byte(v.Num>>8), byte(v.Num))
		case fieldDword:
			out = append(out, byte(v.Num>>24), byte(v.Num>>16), byte(v.Num>>8), byte(v.Num))
		case fieldUID:
			b := v.UID.Bytes()
			out = append(out, b[:]...)
		case fieldOptionalUID:
			if v.UID != (rdm.UID{}) {
				b := v.UID.Bytes()
				out = append(out, b[:]...)
			}
		case fieldASCII:
			s := v.Str
			if len(s) > 32 {
				s = s[:32]
			}
			out = append(out, []byte(s)...)
		}
	}
	return out, nil
}

// Decode deserializes data as one or more repeated instances of
// c.Format. A format ending in '$' always yields exactly one instance.
// A format with a trailing 'a'/'v' field also yields exactly one
// instance, consuming the remainder of data for that field. Otherwise
// data is split into len(data)/instanceSize repeats (e.g. a list of
// UIDs or PIDs).
func (c Codec) Decode(data []byte) ([][]Value, error) {
	fields, anchored, err := parseFormat(c.Format)
	if err != nil {
		return nil, err
	}
	hasTrailingVariable := len(fields) > 0 && (fields[len(fields)-1].kind == fieldASCII || fields[len(fields)-1].kind == fieldOptionalUID)

	if anchored || hasTrailingVariable {
		vals, _, err := decodeOne(fields, data)
		if err != nil {
			return nil, err
		}
		return [][]Value{vals}, nil
	}

	size := instanceSize(fields)
	if size <= 0 {
		return nil, driverr.New(driverr.InvalidArg, "format %q has no fixed instance size", c.Format)
	}
	if len(data)%size != 0 {
		return nil, driverr.New(driverr.PacketSize, "data length %d not a multiple of instance size %d", len(data), size)
	}
	var instances [][]Value
	for off := 0; off < len(data); off += size {
		vals, _, err := decodeOne(fields, data[off:off+size])
		if err != nil {
			return nil, err
		}
		instances = append(instances, vals)
	}
	return instances, nil
}

func decodeOne(fields []field, data []byte) ([]Value, int, error) {
	var vals []Value
	off := 0
	for idx, f := range fields {
		remaining := data[off:]
		switch f.kind {
		case fieldLiteral:
			if len(remaining) < len(f.literal) || !equalBytes(remaining[:len(f.literal)], f.literal) {
				return nil, 0, driverr.New(driverr.InvalidResponse, "literal mismatch at field %d", idx)
			}
			off += len(f.literal)
		case fieldByte:
			if len(remaining) < 1 {
				return nil, 0, driverr.New(driverr.PacketSize, "truncated byte field")
			}
			vals = append(vals, Value{Kind: f.kind, Num: uint32(remaining[0])})
			off++
		case fieldWord:
			if len(remaining) < 2 {
				return nil, 0, driverr.New(driverr.PacketSize, "truncated word field")
			}
			vals = append(vals, Value{Kind: f.kind, Num: uint32(remaining[0])<<8 | uint32(remaining[1])})
			off += 2
		case fieldDword:
			if len(remaining) < 4 {
				return nil, 0, driverr.New(driverr.PacketSize, "truncated dword field")
			}
			vals = append(vals, Value{Kind: f.kind, Num: uint32(remaining[0])<<24 | uint32(remaining[1])<<16 | uint32(remaining[2])<<8 | uint32(remaining[3])})
			off += 4
		case fieldUID:
			if len(remaining) < 6 {
				return nil, 0, driverr.New(driverr.PacketSize, "truncated uid field")
			}
			u, err := rdm.ParseUID(remaining[:6])
			if err != nil {
				return nil, 0, err
			}
			vals = append(vals, Value{Kind: f.kind, UID: u})
			off += 6
		case fieldOptionalUID:
			if len(remaining) == 0 {
				vals = append(vals, Value{Kind: f.kind})
				continue
			}
			if len(remaining) != 6 {
				return nil, 0, driverr.New(driverr.PacketSize, "optional uid field must be 0 or 6 bytes, got %d", len(remaining))
			}
			u, err := rdm.ParseUID(remaining)
			if err != nil {
				return nil, 0, err
			}
			vals = append(vals, Value{Kind: f.kind, UID: u})
			off += 6
		case fieldASCII:
			s := strings.TrimRight(string(remaining), "\x00")
			if len(s) > 32 {
				s = s[:32]
			}
			vals = append(vals, Value{Kind: f.kind, Str: s})
			off = len(data)
		}
	}
	return vals, off, nil
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
