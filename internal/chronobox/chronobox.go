// Package chronobox resolves Chronobox channel names to board coordinates
// using the channel-name lists stored in the ODB.
package chronobox

import (
	"errors"
	"fmt"

	"github.com/valyala/fastjson"

	"github.com/ALPHA-g-Experiment/elogger/internal/odb"
)

// maxChannels is how many channels a board can address.
const maxChannels = 256

// Boards is every Chronobox board, in lookup order.
var Boards = []string{"cb01", "cb02", "cb03", "cb04"}

// Channel is the physical coordinate of a named channel.
type Channel struct {
	Board  string
	Number uint8
}

func (c Channel) String() string { return fmt.Sprintf("%s/%d", c.Board, c.Number) }

// NamesPath is the ODB path of a board's ordered channel-name list.
func NamesPath(board string) string {
	return "/Equipment/" + board + "/Settings/names"
}

// BoardError means a board's channel-name list is missing, not an array, or
// longer than a board can address (Entries is then its length).
type BoardError struct {
	Board   string
	Entries int
}

func (e *BoardError) Error() string {
	if e.Entries > 0 {
		return fmt.Sprintf("chronobox names array for %s has %d entries, want at most %d", e.Board, e.Entries, maxChannels)
	}
	return fmt.Sprintf("failed to find chronobox names array for %s in the ODB", e.Board)
}

// ResolutionError means a channel name did not match exactly one board
// channel.
type ResolutionError struct {
	Channel string
	Matches []Channel
}

func (e *ResolutionError) Error() string {
	if len(e.Matches) == 0 {
		return fmt.Sprintf("channel %q not found in the ODB", e.Channel)
	}
	return fmt.Sprintf("channel %q is ambiguous in the ODB: %d matches %v", e.Channel, len(e.Matches), e.Matches)
}

// IsAbsent reports whether err is a ResolutionError with no match.
func IsAbsent(err error) bool {
	var e *ResolutionError
	return errors.As(err, &e) && len(e.Matches) == 0
}

// IsAmbiguous reports whether err is a ResolutionError with several matches.
func IsAmbiguous(err error) bool {
	var e *ResolutionError
	return errors.As(err, &e) && len(e.Matches) > 1
}

// Resolve finds the unique board channel called name. It fails if any board's
// name list is unreadable, or if name matches zero or more than one channel
// across all boards.
func Resolve(name string, doc *odb.Document) (Channel, error) {
	var found []Channel
	for _, board := range Boards {
		names, ok := doc.Array(NamesPath(board))
		if !ok {
			return Channel{}, &BoardError{Board: board}
		}
		if len(names) > maxChannels {
			return Channel{}, &BoardError{Board: board, Entries: len(names)}
		}
		for i, n := range names {
			if n.Type() == fastjson.TypeString && string(n.GetStringBytes()) == name {
				found = append(found, Channel{Board: board, Number: uint8(i)})
			}
		}
	}
	if len(found) != 1 {
		return Channel{}, &ResolutionError{Channel: name, Matches: found}
	}
	return found[0], nil
}
