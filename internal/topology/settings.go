package topology

import (
	"context"
	"fmt"
	"kvguard/internal/types"
	"net"
	"strconv"
	"strings"
	"time"
)

// Namespace is the configuration namespace every connection setting lives in.
const Namespace = "Redis"

const (
	DefaultPort           = 6379
	DefaultConnectTimeout = 5 * time.Second
	DefaultSyncTimeout    = 3 * time.Second
	DefaultRetryCount     = 3
	DefaultRetrySleep     = 200 * time.Millisecond
)

// Mode is the connection topology, fixed once settings are loaded.
type Mode int

const (
	// ModeDirect connects to one endpoint, optionally through a proxy.
	ModeDirect Mode = iota
	// ModeSupervised asks a set of sentinels for the current master and connects to it.
	ModeSupervised
)

func (m Mode) String() string {
	if m == ModeSupervised {
		return "supervised"
	}
	return "direct"
}

// Settings is everything the resolver and the store client read from configuration.
type Settings struct {
	Mode Mode

	// Direct
	Endpoint string
	Port     int
	Proxy    bool

	// Supervised
	SentinelEndpoints []string
	MasterName        string

	Username string
	Password string
	DB       int
	TLS      bool

	ConnectTimeout time.Duration
	SyncTimeout    time.Duration

	RetryCount int
	RetrySleep time.Duration

	// CompressAbove enables zstd for values of at least this many bytes. 0 disables it.
	CompressAbove int
}

// ConfigReader is the part of configcache.Cache LoadSettings needs.
type ConfigReader interface {
	GetValue(ctx context.Context, name, namespace string) string
	GetInt(ctx context.Context, name, namespace string, def int) int
	GetBool(ctx context.Context, name, namespace string, def bool) bool
	GetMillis(ctx context.Context, name, namespace string, def time.Duration) time.Duration
}

// LoadSettings reads the Redis namespace. It does not validate; Resolver.Store does.
func LoadSettings(ctx context.Context, r ConfigReader) Settings {
	s := Settings{
		Endpoint:       strings.TrimSpace(r.GetValue(ctx, "EndPoint", Namespace)),
		Port:           r.GetInt(ctx, "Port", Namespace, DefaultPort),
		Proxy:          r.GetBool(ctx, "Proxy", Namespace, false),
		MasterName:     strings.TrimSpace(r.GetValue(ctx, "MasterName", Namespace)),
		Username:       r.GetValue(ctx, "User", Namespace),
		Password:       r.GetValue(ctx, "Password", Namespace),
		DB:             r.GetInt(ctx, "DB", Namespace, 0),
		TLS:            r.GetBool(ctx, "SSL", Namespace, false),
		ConnectTimeout: r.GetMillis(ctx, "ConnectTimeoutMillis", Namespace, DefaultConnectTimeout),
		SyncTimeout:    r.GetMillis(ctx, "SyncTimeoutMillis", Namespace, DefaultSyncTimeout),
		RetryCount:     r.GetInt(ctx, "RetryCount", Namespace, DefaultRetryCount),
		RetrySleep:     r.GetMillis(ctx, "RetrySleepMillis", Namespace, DefaultRetrySleep),
		CompressAbove:  r.GetInt(ctx, "CompressAbove", Namespace, 0),
	}
	if r.GetBool(ctx, "UseSentinel", Namespace, false) {
		s.Mode = ModeSupervised
	}
	for _, ep := range strings.Split(r.GetValue(ctx, "SentinelEndPoints", Namespace), ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			s.SentinelEndpoints = append(s.SentinelEndpoints, ep)
		}
	}
	return s
}

// Validate reports missing mandatory settings as types.ErrConfiguration.
func (s Settings) Validate() error {
	switch s.Mode {
	case ModeSupervised:
		if len(s.SentinelEndpoints) == 0 {
			return fmt.Errorf("%w: %s.SentinelEndPoints is empty", types.ErrConfiguration, Namespace)
		}
		if s.MasterName == "" {
			return fmt.Errorf("%w: %s.MasterName is empty", types.ErrConfiguration, Namespace)
		}
	default:
		if s.Endpoint == "" {
			return fmt.Errorf("%w: %s.EndPoint is empty", types.ErrConfiguration, Namespace)
		}
		if s.Port <= 0 || s.Port > 65535 {
			return fmt.Errorf("%w: %s.Port %d out of range", types.ErrConfiguration, Namespace, s.Port)
		}
		if s.Proxy && s.DB != 0 {
			return fmt.Errorf("%w: proxied connections only support DB 0", types.ErrConfiguration)
		}
	}
	if s.DB < 0 {
		return fmt.Errorf("%w: %s.DB must be non-negative", types.ErrConfiguration, Namespace)
	}
	return nil
}

// Endpoints returns the ordered endpoint set for the configured mode.
func (s Settings) Endpoints() []string {
	if s.Mode == ModeSupervised {
		return append([]string(nil), s.SentinelEndpoints...)
	}
	if s.Endpoint == "" {
		return nil
	}
	return []string{net.JoinHostPort(s.Endpoint, strconv.Itoa(s.Port))}
}

// String returns a formatted representation without secrets.
func (s Settings) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Topology")
	addField("Mode", s.Mode.String())
	addField("Proxy", strconv.FormatBool(s.Proxy))
	if s.Mode == ModeSupervised {
		addField("Master Name", s.MasterName)
	}
	addField("DB", strconv.Itoa(s.DB))
	addField("TLS", strconv.FormatBool(s.TLS))

	addSection("Timeouts")
	addField("Connect", s.ConnectTimeout.String())
	addField("Sync", s.SyncTimeout.String())

	addSection("Retry")
	addField("Attempts", strconv.Itoa(s.RetryCount))
	addField("Sleep", s.RetrySleep.String())

	addSection("Endpoints")
	for i, ep := range s.Endpoints() {
		addField(strconv.Itoa(i), ep)
	}
	return sb.String()
}
