package dmx

// rxEventKind tags one decoded event recovered from the raw PARMRK-escaped
// UART byte stream — the host-side equivalent of a hardware RX interrupt
// line.
type rxEventKind int

const (
	rxData rxEventKind = iota
	rxBreak
	rxFramingErr
)

type rxEvent struct {
	kind rxEventKind
	data byte // valid for rxData and rxFramingErr
}

// decodeParmrk scans raw (bytes straight off the wire, with IGNPAR clear
// and PARMRK|INPCK set) and appends the events it finds to dst, returning
// the extended slice and the number of raw bytes consumed. A trailing
// partial marker (0xFF with nothing, or one byte, following) is left
// unconsumed so the caller can prepend it to the next read.
func decodeParmrk(dst []rxEvent, raw []byte) ([]rxEvent, int) {
	i := 0
	for i < len(raw) {
		b := raw[i]
		if b != 0xFF {
			dst = append(dst, rxEvent{kind: rxData, data: b})
			i++
			continue
		}
		// Possible marker: need at least 2 more bytes to disambiguate.
		if i+1 >= len(raw) {
			break // wait for more data
		}
		if raw[i+1] == 0xFF {
			// Escaped literal 0xFF data byte.
			dst = append(dst, rxEvent{kind: rxData, data: 0xFF})
			i += 2
			continue
		}
		if raw[i+1] != 0x00 {
			// Not a valid marker prefix; treat defensively as literal data
			// (should not happen with a conforming kernel driver).
			dst = append(dst, rxEvent{kind: rxData, data: b})
			i++
			continue
		}
		if i+2 >= len(raw) {
			break // marker started, need the third byte
		}
		if raw[i+2] == 0x00 {
			dst = append(dst, rxEvent{kind: rxBreak})
		} else {
			dst = append(dst, rxEvent{kind: rxFramingErr, data: raw[i+2]})
		}
		i += 3
	}
	return dst, i
}
