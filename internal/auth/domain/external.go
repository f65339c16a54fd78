package domain

// ExternalIdentity is what an external identity provider asserts about the
// person who completed its sign-in flow.
type ExternalIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}
