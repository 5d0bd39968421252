package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mjenner/nodegate/internal/pkg/haapi"
	"github.com/mjenner/nodegate/internal/pkg/nodemap"
)

var _nodesCmdOpts struct {
	haBaseURL string
	haToken   string
	haTimeout time.Duration
	domains   []string
}

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Print the discovered node map as JSON",
	Long: `Fetches the full entity state list from the upstream API, derives
the logical node map and prints it. Useful for checking which entity
ends up as the representative of a node without going through the UI.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doNodes(); err != nil {
			return err
		}

		return nil
	},

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return checkRequiredFlags("ha.base-url", "ha.token")
	},
}

func init() {
	nodesCmd.Flags().StringVar(&_nodesCmdOpts.haBaseURL, "ha-url", "http://supervisor/core/api", "base URL of the Home Assistant REST API")
	nodesCmd.Flags().StringVar(&_nodesCmdOpts.haToken, "ha-token", "", "bearer token for the Home Assistant REST API")
	nodesCmd.Flags().DurationVar(&_nodesCmdOpts.haTimeout, "ha-timeout", time.Second*10, "maximum duration of an upstream API call, eg. 1m or 10s")
	nodesCmd.Flags().StringSliceVar(&_nodesCmdOpts.domains, "domains", nil, "entity domains to consider (default: switch,sensor,number,light,binary_sensor)")

	errPanic(viper.GetViper().BindPFlag("ha.base-url", nodesCmd.Flags().Lookup("ha-url")))
	errPanic(viper.GetViper().BindPFlag("ha.token", nodesCmd.Flags().Lookup("ha-token")))
	errPanic(viper.GetViper().BindPFlag("ha.api-timeout", nodesCmd.Flags().Lookup("ha-timeout")))
	errPanic(viper.GetViper().BindPFlag("ha.domains", nodesCmd.Flags().Lookup("domains")))

	rootCmd.AddCommand(nodesCmd)
}

type nodeResult struct {
	Node     string              `json:"node"`
	Entities map[string][]string `json:"entities"`
	Repr     map[string]string   `json:"repr"`
}

func doNodes() error {
	ha := haapi.NewLiveClient(viper.GetString("ha.base-url")).
		WithToken(viper.GetString("ha.token")).
		WithTimeout(viper.GetDuration("ha.api-timeout"))

	states, err := ha.States()
	if err != nil {
		return err
	}

	domains := nodemap.DefaultDomains
	if custom := viper.GetStringSlice("ha.domains"); len(custom) > 0 {
		domains = nodemap.Domains(custom...)
	}

	nodes := nodemap.Build(states, domains)

	out := make([]nodeResult, 0, len(nodes))
	for _, token := range nodemap.Tokens(nodes) {
		n := nodes[token]
		out = append(out, nodeResult{Node: n.Token, Entities: n.Entities, Repr: n.Repr})
	}

	b, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return err
	}

	fmt.Println(string(b))
	return nil
}
