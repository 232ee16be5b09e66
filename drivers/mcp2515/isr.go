package mcp2515

import "railcode-go/can"

// onInterrupt runs on the falling edge of INT. Only one condition is serviced
// per interrupt, in the order error, transmit complete, receive; CANINTF is
// cleared as a whole so a second pending condition is not seen until the chip
// raises INT again.
func (d *Device) onInterrupt() {
	st := d.irq.Disable()

	w, r := d.isrW[:4], d.isrR[:4]
	w[0], w[1], w[2], w[3] = instrRead, regCANINTF, 0, 0
	if err := d.xfer(w, r); err != nil {
		d.irq.Restore(st)
		return
	}
	flags, eflg := r[2], r[3]
	w[0], w[1], w[2], w[3] = instrWrite, regCANINTF, 0, 0
	if err := d.xfer(w, nil); err != nil {
		// INT stays low while CANINTF is set and no further edge would arrive,
		// so retry once. The flags already read are serviced either way.
		_ = d.xfer(w, nil)
	}

	switch {
	case flags&intERRIF != 0:
		if e := d.errs.Claim(); e != nil {
			*e = ErrorEvent{TsMs: d.clock(), Flags: eflg}
			d.errs.Commit()
		}
	case flags&intTX0IF != 0:
		d.startNext()
	case flags&intRX0IF != 0:
		if f := d.rx.Claim(); f != nil {
			if d.receiveFrame(f) {
				d.rx.Commit()
			}
		}
	}

	// Handlers run with interrupts enabled. The draining flags stop a nested
	// interrupt from dispatching out of order; the outer loop picks up
	// whatever the nested one queued.
	if !d.drainingErrs {
		d.drainingErrs = true
		for e := d.errs.Peek(); e != nil; e = d.errs.Peek() {
			if h := d.onErr; h != nil {
				d.irq.Restore(st)
				h(e)
				st = d.irq.Disable()
			}
			d.errs.Pop()
		}
		d.drainingErrs = false
	}
	if !d.drainingRx {
		d.drainingRx = true
		for f := d.rx.Peek(); f != nil; f = d.rx.Peek() {
			if h := d.onMsg; h != nil {
				d.irq.Restore(st)
				h(f)
				st = d.irq.Disable()
			}
			d.rx.Pop()
		}
		d.drainingRx = false
	}

	d.irq.Restore(st)
}

// startNext moves the head of the queue into TXB0. A frame that cannot be
// loaded stays queued with the transmitter idle, so the next commit retries
// it. Called with interrupts disabled.
func (d *Device) startNext() {
	f := d.tx.Peek()
	if f == nil || !d.sendFrame(f) {
		d.sending = false
		return
	}
	d.tx.Pop()
	d.sending = true
}

// sendFrame loads TXB0 and requests transmission. Called with interrupts
// disabled.
func (d *Device) sendFrame(f *can.Frame) bool {
	w := d.txW[:]
	w[0] = instrLoadTX
	if f.Extended {
		b := extIDBytes(f.ID)
		w[1], w[2], w[3], w[4] = b[0], b[1], b[2], b[3]
	} else {
		w[1], w[2] = stdIDBytes(f.ID)
		w[3], w[4] = 0, 0
	}
	n := f.Len
	if n > can.MaxDataLen {
		n = can.MaxDataLen
	}
	if f.RTR {
		w[5] = dlcRTR | n
	} else {
		w[5] = n
	}
	copy(w[6:], f.Data[:])
	if err := d.xfer(w, nil); err != nil {
		return false
	}
	w[0] = instrRTS0
	if err := d.xfer(w[:1], nil); err != nil {
		return false
	}
	d.sent++
	return true
}

// receiveFrame reads RXB0 into f. Called with interrupts disabled.
func (d *Device) receiveFrame(f *can.Frame) bool {
	w, r := d.isrW[:], d.isrR[:]
	for i := range w {
		w[i] = 0
	}
	w[0] = instrReadRX
	if err := d.xfer(w, r); err != nil {
		return false
	}
	sidh, sidl, eid8, eid0, dlc := r[1], r[2], r[3], r[4], r[5]

	*f = can.Frame{TsMs: d.clock()}
	if sidl&sidlEXIDE != 0 {
		f.Extended = true
		f.ID = uint32(sidh)<<21 | uint32(sidl&0xE0)<<13 | uint32(sidl&0x03)<<16 |
			uint32(eid8)<<8 | uint32(eid0)
		f.RTR = dlc&dlcRTR != 0
	} else {
		f.ID = uint32(sidh)<<3 | uint32(sidl)>>5
		f.RTR = sidl&sidlSRR != 0
	}
	n := dlc & 0x0F
	if n > can.MaxDataLen {
		n = can.MaxDataLen
	}
	f.Len = n
	if !f.RTR {
		copy(f.Data[:n], r[6:6+int(n)])
	}
	d.received++
	return true
}

// stdIDBytes returns SIDH and SIDL for an 11-bit identifier.
func stdIDBytes(id uint32) (sidh, sidl byte) {
	return byte((id & 0x7F8) >> 3), byte((id & 0x007) << 5)
}

// extIDBytes returns SIDH, SIDL (with EXIDE), EID8 and EID0 for a 29-bit
// identifier.
func extIDBytes(id uint32) [4]byte {
	return [4]byte{
		byte((id & 0x1FE00000) >> 21),
		byte((id&0x001C0000)>>13) | byte((id&0x00030000)>>16) | sidlEXIDE,
		byte((id & 0x0000FF00) >> 8),
		byte(id & 0x000000FF),
	}
}
