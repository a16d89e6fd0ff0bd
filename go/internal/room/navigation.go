package room

// DefaultNavigation is the cursor value after a restart
const DefaultNavigation = "/"

// Navigation is the shared "current page" pointer. Any string is accepted.
// It is never persisted.
type Navigation struct {
	value string
}

func NewNavigation() *Navigation {
	return &Navigation{value: DefaultNavigation}
}

func (n *Navigation) Set(value string) {
	n.value = value
}

func (n *Navigation) Get() string {
	return n.value
}
