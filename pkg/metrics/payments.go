package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// PaymentMetrics tracks ledger activity across the payment pipeline.
type PaymentMetrics struct {
	recorded  *prometheus.CounterVec
	duplicate *prometheus.CounterVec
	volume    *prometheus.CounterVec
	slotsFull prometheus.Counter
}

// NewPaymentMetrics registers payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	recorded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Payments accepted into the ledger.",
	}, []string{"payment_type", "currency"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_duplicate_total",
		Help: "Payment submissions rejected as duplicates.",
	}, []string{"payment_type"})
	volume := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_volume_total",
		Help: "Gross payment volume by currency.",
	}, []string{"currency"})
	slotsFull := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "investor_slots_full_total",
		Help: "Buyout attempts rejected because all investor slots were taken.",
	})
	reg.MustRegister(recorded, duplicate, volume, slotsFull)
	return &PaymentMetrics{
		recorded:  recorded,
		duplicate: duplicate,
		volume:    volume,
		slotsFull: slotsFull,
	}
}

// IncRecorded counts an accepted payment.
func (p *PaymentMetrics) IncRecorded(paymentType, currency string) {
	if p == nil || p.recorded == nil {
		return
	}
	p.recorded.WithLabelValues(normalizeLabel(paymentType), normalizeLabel(currency)).Inc()
}

// IncDuplicate counts a submission rejected by the idempotency guard.
func (p *PaymentMetrics) IncDuplicate(paymentType string) {
	if p == nil || p.duplicate == nil {
		return
	}
	p.duplicate.WithLabelValues(normalizeLabel(paymentType)).Inc()
}

// AddVolume adds the gross amount of an accepted payment.
func (p *PaymentMetrics) AddVolume(currency string, amount decimal.Decimal) {
	if p == nil || p.volume == nil {
		return
	}
	f, _ := amount.Float64()
	if f <= 0 {
		return
	}
	p.volume.WithLabelValues(normalizeLabel(currency)).Add(f)
}

// IncSlotsFull counts a buyout rejected for lack of open slots.
func (p *PaymentMetrics) IncSlotsFull() {
	if p == nil || p.slotsFull == nil {
		return
	}
	p.slotsFull.Inc()
}
