package offlinekit

import "fmt"

type CacheStatusFwdReason string

const (
	// The request method's semantics require the request to be
	// forwarded.
	CacheStatusFwdMethod CacheStatusFwdReason = "method"

	// The request was forwarded to the origin, which answered.
	CacheStatusFwdMiss CacheStatusFwdReason = "miss"

	// The request is for the policy script, which is never cached.
	CacheStatusFwdBypass CacheStatusFwdReason = "bypass"
)

// CacheStatus represents the Cache-Status response header
// added to every response the interception policy produces,
// live, stored, and synthesized alike.
type CacheStatus struct {
	hit       bool
	fwdReason CacheStatusFwdReason
	detail    string
	Stored    bool
}

func (cs *CacheStatus) Hit() {
	cs.hit = true
}

func (cs *CacheStatus) Forward(reason CacheStatusFwdReason) {
	cs.hit = false
	cs.fwdReason = reason
}

func (cs *CacheStatus) Detail(detail string) {
	cs.detail = detail
}

func (cs *CacheStatus) String() string {
	status := "Offline-Kit; hit"
	if !cs.hit {
		status = fmt.Sprintf("Offline-Kit; fwd=%s", cs.fwdReason)
	}
	if cs.Stored {
		status = status + "; stored"
	}
	if cs.detail != "" {
		status = status + "; detail=" + cs.detail
	}
	return status
}
