package quiz

import "time"

// SetNow swaps the registry clock so idle pruning can be tested without sleeping.
func (r *Registry) SetNow(now func() time.Time) { r.now = now }
