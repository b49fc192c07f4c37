package metadata

type Family byte

const (
	AddressFamilyUnspecified Family = iota
	AddressFamilyIPv4
	AddressFamilyIPv6
	AddressFamilyFqdn
)

func (af Family) IsIPv4() bool {
	return af == AddressFamilyIPv4
}

func (af Family) IsIPv6() bool {
	return af == AddressFamilyIPv6
}
