package platform

// MaxAdmins bounds the platform admin list.
const MaxAdmins = 10

type Admin struct {
	Credential [20]byte
	Name       string
	AddedAt    uint64
}

// Admins is the singleton platform record.
type Admins struct {
	Entries    []Admin
	SecretHash string
}

func (a *Admins) index(c [20]byte) int {
	for i, entry := range a.Entries {
		if entry.Credential == c {
			return i
		}
	}
	return -1
}

// Pauses holds the sorted list of paused module names.
type Pauses struct {
	Modules []string
}
