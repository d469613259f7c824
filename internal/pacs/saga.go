package pacs

// Cross-store mutations run as an explicit two-step sequence: first leg,
// second leg, and on second-leg failure a compensating undo of the first.
// Compensation is best effort. If the undo itself fails the stores are left
// inconsistent and the failure is logged loudly so an operator can repair;
// the caller still receives the original error.

func compensate(log Logger, what string, undo func() error) {
	if err := undo(); err != nil {
		log.Error("compensation failed, stores are inconsistent",
			"action", what, "error", err)
		return
	}
	log.Warn("rolled back partial change", "action", what)
}
