package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/app"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/mood"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/printers"
	"github.com/Aziz-Madhi/nafsy-sub001/pkg/record"
)

// History prints the persisted messages of a session.
type History struct {
	Backend app.Backend
	Channel string
	Session string
	Limit   int
	ShowID  bool
	// Output is "json" for machine-readable output, pretty otherwise.
	Output string
	Out    io.Writer
}

func (n *History) Do(ctx context.Context) error {
	if n.Backend == nil {
		return errors.New("can not get, no backend")
	}
	recs, err := n.Backend.Records(ctx, n.Channel, n.Session, n.Limit)
	if err != nil {
		return err
	}

	if n.Output == "json" {
		if recs == nil {
			recs = []record.Record{}
		}
		enc := json.NewEncoder(n.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	pp := printers.PrettyPrint{ShowID: n.ShowID, Out: n.Out}
	pp.TitleWithCount(fmt.Sprintf("%s/%s", n.Channel, record.NormalizeSession(n.Session)), len(recs))
	if n.Channel == record.ChannelMood {
		logged, _ := mood.FromRecords(recs)
		pp.Mood(logged...)
		return nil
	}
	pp.Conversation(recs...)
	return nil
}
