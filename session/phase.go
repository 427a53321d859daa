package session

type Phase int

const (
	Initial Phase = iota
	Capturing
	Processing
	Complete
)

func (p Phase) String() string {
	switch p {
	case Initial:
		return "initial"
	case Capturing:
		return "capturing"
	case Processing:
		return "processing"
	case Complete:
		return "complete"
	}
	return "unknown"
}
