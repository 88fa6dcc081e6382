package payments

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusDeclined Status = "DECLINED"
	StatusVoided   Status = "VOIDED"
	StatusError    Status = "ERROR"
	StatusFinished Status = "FINISHED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:  {StatusApproved: true, StatusDeclined: true, StatusVoided: true, StatusError: true},
	StatusApproved: {StatusFinished: true, StatusError: true},
	StatusDeclined: {},
	StatusVoided:   {},
	StatusError:    {},
	StatusFinished: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Terminal = verdict gateway sudah final; FINISHED berarti stok juga sudah turun.
func (s Status) Terminal() bool {
	return s != StatusPending && s != StatusApproved
}
