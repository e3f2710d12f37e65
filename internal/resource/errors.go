package resource

import "github.com/vizstack/broker/internal/vserr"

func errInvalid(msg string) error {
	return vserr.New(vserr.IncorrectValue, msg)
}
