package importer

import (
	"io"

	"github.com/MrJamesThe3rd/estatebank/internal/importer/feed"
)

type Format string

const (
	FormatAuto     Format = "auto"
	FormatStandard Format = "standard"
	FormatEuropean Format = "european"
)

type Importer interface {
	Parse(r io.Reader) (*feed.Result, error)
}
