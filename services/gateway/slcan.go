package gateway

import (
	"railcode-go/can"
	"railcode-go/errcode"
	"railcode-go/x/conv"
)

// SLCAN (Lawicel) line protocol. Lines end in CR; a BEL reports an error.
const (
	cr  = '\r'
	bel = 0x07

	stampWrapMs = 60000
)

// Encode appends the SLCAN line for f, including the trailing CR. With stamp
// set a four-digit millisecond timestamp (mod 60000) follows the data.
func Encode(dst []byte, f *can.Frame, stamp bool) []byte {
	var kind byte
	switch {
	case f.Extended && f.RTR:
		kind = 'R'
	case f.Extended:
		kind = 'T'
	case f.RTR:
		kind = 'r'
	default:
		kind = 't'
	}
	dst = append(dst, kind)
	if f.Extended {
		dst = conv.AppendHex(dst, f.ExtID(), 8)
	} else {
		dst = conv.AppendHex(dst, uint32(f.StdID()), 3)
	}
	n := f.Len
	if n > can.MaxDataLen {
		n = can.MaxDataLen
	}
	dst = append(dst, '0'+n)
	if !f.RTR {
		for _, b := range f.Data[:n] {
			dst = conv.AppendHex(dst, uint32(b), 2)
		}
	}
	if stamp {
		ms := f.TsMs % stampWrapMs
		if ms < 0 {
			ms += stampWrapMs
		}
		dst = conv.AppendHex(dst, uint32(ms), 4)
	}
	return append(dst, cr)
}

// Decode parses a t, T, r or R line without its CR.
func Decode(line []byte) (can.Frame, error) {
	if len(line) == 0 {
		return can.Frame{}, errcode.InvalidPayload
	}
	var f can.Frame
	idLen := 3
	switch line[0] {
	case 't':
	case 'r':
		f.RTR = true
	case 'T':
		f.Extended, idLen = true, 8
	case 'R':
		f.Extended, f.RTR, idLen = true, true, 8
	default:
		return can.Frame{}, errcode.Unsupported
	}
	if len(line) < 1+idLen+1 {
		return can.Frame{}, errcode.InvalidPayload
	}
	id, ok := conv.ParseHex(line[1 : 1+idLen])
	if !ok {
		return can.Frame{}, errcode.InvalidPayload
	}
	f.ID = id
	if !f.Valid() {
		return can.Frame{}, errcode.InvalidParams
	}
	dlc := line[1+idLen]
	if dlc < '0' || dlc > '8' {
		return can.Frame{}, errcode.InvalidPayload
	}
	f.Len = dlc - '0'
	data := line[2+idLen:]
	if f.RTR {
		if len(data) != 0 {
			return can.Frame{}, errcode.InvalidPayload
		}
		return f, nil
	}
	if len(data) != 2*int(f.Len) {
		return can.Frame{}, errcode.InvalidPayload
	}
	for i := 0; i < int(f.Len); i++ {
		b, ok := conv.ParseHex(data[2*i : 2*i+2])
		if !ok {
			return can.Frame{}, errcode.InvalidPayload
		}
		f.Data[i] = byte(b)
	}
	return f, nil
}
