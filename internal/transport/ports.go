package transport

// PortWriter adapts a *Port to the bypass-write shape internal/channel and
// internal/prescheduler expect (the same WriteMP(sourceId, payload,
// maxSpins) signature the IN ring satisfies in SAB mode), so a Channel or
// Scheduler never has to know whether its direct path is a ring or a
// port. postMessage never fails synchronously, so WriteMP here never
// returns ring.ErrRingFull/ErrWriteContended the way the SAB path can.
type PortWriter struct {
	port *Port
}

// NewPortWriter wraps port for use as a Channel/Scheduler direct-write
// destination.
func NewPortWriter(port *Port) *PortWriter {
	return &PortWriter{port: port}
}

// WriteMP encodes payload as a one-entry batch and posts it. maxSpins is
// accepted only for interface compatibility with the SAB path; it has no
// effect here.
func (w *PortWriter) WriteMP(sourceID uint32, payload []byte, maxSpins int) error {
	w.port.Post(EncodeBatch([]Entry{{SourceID: sourceID, Payload: payload}}))
	return nil
}

// Port simulates a browser MessagePort's pairwise, asynchronous delivery
// with a pair of buffered Go channels: whatever one side Posts, the other
// side Recvs.
type Port struct {
	out    chan []byte
	in     chan []byte
	closed chan struct{}
}

// NewPortPair creates two ends of one simulated MessageChannel.
func NewPortPair(buffer int) (a, b *Port) {
	c1 := make(chan []byte, buffer)
	c2 := make(chan []byte, buffer)
	closed := make(chan struct{})
	return &Port{out: c1, in: c2, closed: closed}, &Port{out: c2, in: c1, closed: closed}
}

// Post enqueues msg for the other end to Recv. It is a no-op once Close
// has been called on this end.
func (p *Port) Post(msg []byte) {
	select {
	case <-p.closed:
		return
	default:
	}
	select {
	case p.out <- msg:
	case <-p.closed:
	}
}

// Recv returns the channel this end reads incoming messages from.
func (p *Port) Recv() <-chan []byte { return p.in }

// Close signals both ends that the port is no longer usable.
func (p *Port) Close() {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
}
