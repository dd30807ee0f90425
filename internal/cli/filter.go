package cli

import (
	"github.com/spf13/cobra"

	"github.com/bjaus/gateway/dispatch"
)

// FilterOptions selects which dispatch frames a command routes. Control
// frames always pass.
type FilterOptions struct {
	Tags  []string
	Guild string
}

func (o *FilterOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&o.Tags, "tag", nil, "only route dispatch frames with these tags")
	cmd.Flags().StringVar(&o.Guild, "guild", "", "only route dispatch frames for this guild id")
}

// discriminator returns nil when no filter is set.
func (o *FilterOptions) discriminator() dispatch.Discriminator {
	var ds []dispatch.Discriminator
	if len(o.Tags) > 0 {
		ds = append(ds, dispatch.FieldIn("t", o.Tags...))
	}
	if o.Guild != "" {
		// Guild events carry their own id; everything else names its guild.
		ds = append(ds, dispatch.Or(
			dispatch.FieldEquals("d.guild_id", o.Guild),
			dispatch.And(dispatch.FieldIn("t", guildTags...), dispatch.FieldEquals("d.id", o.Guild)),
		))
	}
	if len(ds) == 0 {
		return nil
	}
	return dispatch.Or(
		dispatch.Not(dispatch.FieldIntEquals("op", dispatch.OpDispatch)),
		dispatch.And(ds...),
	)
}

var guildTags = []string{dispatch.TagGuildCreate, dispatch.TagGuildUpdate, dispatch.TagGuildDelete}
