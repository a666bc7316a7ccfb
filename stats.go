package ffrdp

import (
	"fmt"
	"strings"
)

// Stats is a point-in-time snapshot of a handler's estimator state and
// counters. Tests and the prometheus collector scrape this instead of
// parsing the String dump.
type Stats struct {
	RTTMeasured  uint32 // last RTT sample, milliseconds
	RTTSmoothed  uint32
	RTTDeviation uint32
	RTO          uint32

	SendSeq    uint32
	RecvSeq    uint32
	RecvWindow uint32 // peer window as last advertised
	WaitSend   int    // frames queued and unacked
	Buffered   int    // delivered bytes ready to Read
	Connected  bool

	SendFirst  uint32 // first transmissions
	SendFailed uint32 // admission refusals
	ResendRTO  uint32
	ResendFast uint32
	QueryRwin  uint32 // window probes emitted

	HasFEC bool
	FEC    FECStats
}

// ResendRatio returns retransmissions as a fraction of first transmissions.
func (s Stats) ResendRatio() float64 {
	if s.SendFirst == 0 {
		return 0
	}
	return float64(s.ResendRTO+s.ResendFast) / float64(s.SendFirst)
}

// Stats returns a snapshot of the handler's state and counters.
func (h *Handler) Stats() Stats {
	s := Stats{
		RTTMeasured:  h.rtt.measured,
		RTTDeviation: h.rtt.deviation,
		RTO:          h.rtt.rto,
		SendSeq:      uint32(h.sendSeq),
		RecvSeq:      uint32(h.recvSeq),
		RecvWindow:   h.recvWin,
		WaitSend:     h.sendList.len,
		Buffered:     h.bufRx.Buffered(),
		Connected:    h.Connected(),
		SendFirst:    h.stats.sendFirst,
		SendFailed:   h.stats.sendFailed,
		ResendRTO:    h.stats.resendRTO,
		ResendFast:   h.stats.resendFast,
		QueryRwin:    h.stats.queryRwin,
	}
	if h.rtt.smoothed != rttUninit {
		s.RTTSmoothed = h.rtt.smoothed
	}
	if c, ok := h.coder.(*XORCoder); ok {
		s.HasFEC = true
		s.FEC = c.Stats()
	}
	return s
}

// String renders the snapshot one field per line for quick inspection.
func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rttm: %d, rtts: %d, rttd: %d, rto: %d\n", s.RTTMeasured, s.RTTSmoothed, s.RTTDeviation, s.RTO)
	fmt.Fprintf(&b, "send_seq            : %d\n", s.SendSeq)
	fmt.Fprintf(&b, "recv_seq            : %d\n", s.RecvSeq)
	fmt.Fprintf(&b, "recv_win            : %d\n", s.RecvWindow)
	fmt.Fprintf(&b, "wait_snd            : %d\n", s.WaitSend)
	fmt.Fprintf(&b, "recv_size           : %d\n", s.Buffered)
	fmt.Fprintf(&b, "counter_send_1sttime: %d\n", s.SendFirst)
	fmt.Fprintf(&b, "counter_send_failed : %d\n", s.SendFailed)
	fmt.Fprintf(&b, "counter_resend_rto  : %d\n", s.ResendRTO)
	fmt.Fprintf(&b, "counter_resend_fast : %d\n", s.ResendFast)
	fmt.Fprintf(&b, "counter_resend_ratio: %.2f%%\n", 100*s.ResendRatio())
	fmt.Fprintf(&b, "counter_query_rwin  : %d\n", s.QueryRwin)
	if s.HasFEC {
		fmt.Fprintf(&b, "counter_fec_tx_short: %d\n", s.FEC.TxShort)
		fmt.Fprintf(&b, "counter_fec_tx_full : %d\n", s.FEC.TxFull)
		fmt.Fprintf(&b, "counter_fec_rx_short: %d\n", s.FEC.RxShort)
		fmt.Fprintf(&b, "counter_fec_rx_full : %d\n", s.FEC.RxFull)
		fmt.Fprintf(&b, "counter_fec_ok      : %d\n", s.FEC.Recovered)
		fmt.Fprintf(&b, "counter_fec_failed  : %d\n", s.FEC.Failed)
	}
	return b.String()
}
