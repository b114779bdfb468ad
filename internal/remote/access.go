package remote

import "strings"

// RemoteUserNotSet is the sentinel policy value meaning remote access is
// enabled but no user context is required: callers are anonymous and
// implicitly denied access to non-public methods. It is deliberately
// distinct from the empty policy, which accepts any caller.
const RemoteUserNotSet = "!!not set!!"

// Settings holds the server-wide access configuration consumed by the
// dispatcher.
type Settings struct {
	// RemoteEnabled gates the remote API as a whole.
	RemoteEnabled bool
	// RemoteUser is the configured remote-user membership policy.
	RemoteUser string
	// UseACL enables access-control enforcement. When off, every caller
	// has access.
	UseACL bool
}

// Identity is the current request's authenticated caller.
type Identity struct {
	User   string
	Groups []string
}

// MembershipFunc evaluates whether a caller satisfies a membership
// policy string.
type MembershipFunc func(policy, user string, groups []string) bool

// AccessChecker decides whether the current caller may invoke a method,
// based on per-method visibility metadata and server configuration.
type AccessChecker struct {
	settings Settings
	identity Identity
	isMember MembershipFunc
}

// NewAccessChecker creates an access checker for one request context.
// A nil membership evaluator falls back to IsMember.
func NewAccessChecker(settings Settings, identity Identity, isMember MembershipFunc) *AccessChecker {
	if isMember == nil {
		isMember = IsMember
	}
	return &AccessChecker{settings: settings, identity: identity, isMember: isMember}
}

// HasAccess reports whether the caller may invoke non-public methods.
// It fails with AccessDeniedError when the remote API is disabled
// globally; all other outcomes are plain booleans.
func (c *AccessChecker) HasAccess() (bool, error) {
	if !c.settings.RemoteEnabled {
		return false, NewAccessDeniedError("server error. remote access is not enabled")
	}
	if c.settings.RemoteUser == RemoteUserNotSet {
		return false, nil
	}
	if !c.settings.UseACL {
		return true, nil
	}
	if c.settings.RemoteUser == "" {
		return true, nil
	}
	return c.isMember(c.settings.RemoteUser, c.identity.User, c.identity.Groups), nil
}

// ForceAccess fails with AccessDeniedError unless the caller has access.
func (c *AccessChecker) ForceAccess() error {
	ok, err := c.HasAccess()
	if err != nil {
		return err
	}
	if !ok {
		return NewAccessDeniedError("server error. not authorized to call this method")
	}
	return nil
}

// CheckAccess enforces access for the given method. Methods explicitly
// marked public skip the check entirely, which is how a login-probe
// method can be called before authentication.
func (c *AccessChecker) CheckAccess(d *MethodDescriptor) error {
	if d.Public {
		return nil
	}
	return c.ForceAccess()
}

// IsMember is the default membership evaluator. The policy is a
// comma-separated list of user names and @group names; matching is
// case-insensitive.
func IsMember(policy, user string, groups []string) bool {
	for entry := range strings.SplitSeq(policy, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if group, ok := strings.CutPrefix(entry, "@"); ok {
			for _, g := range groups {
				if strings.EqualFold(g, group) {
					return true
				}
			}
			continue
		}
		if user != "" && strings.EqualFold(entry, user) {
			return true
		}
	}
	return false
}
