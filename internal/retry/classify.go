package retry

import (
	"errors"
	"net"
	"syscall"
)

// FailureKind separates "the network is down" from every other fault so that
// operators can tell them apart on dashboards.
type FailureKind int

const (
	KindOther FailureKind = iota
	KindUnableToConnect
	KindUnableToResolve
)

var kindNames = map[FailureKind]string{
	KindOther:           "other",
	KindUnableToConnect: "unable_to_connect",
	KindUnableToResolve: "unable_to_resolve",
}

func (k FailureKind) String() string {
	return kindNames[k]
}

// CounterName is the metric name failures of this kind are counted under.
func (k FailureKind) CounterName() string {
	return "kvguard.redis.failure." + k.String()
}

// Classify maps an error to its FailureKind.
func Classify(err error) FailureKind {
	if err == nil {
		return KindOther
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindUnableToResolve
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return KindUnableToConnect
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return KindUnableToConnect
	}
	return KindOther
}
