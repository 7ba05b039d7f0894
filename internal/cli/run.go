package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunStartCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunCancelCmd(clientFn, outputFn),
		newRunInputsCmd(clientFn, outputFn),
		newRunOutputsCmd(clientFn, outputFn),
		newRunInteractionsCmd(clientFn, outputFn),
		newRunReplyCmd(clientFn, outputFn),
	)

	return cmd
}

var runHeaders = []string{"ID", "NAME", "STATE", "STATUS", "CANCELLED", "CREATED"}

func runRow(r *RunResponse) []string {
	return []string{r.ID, r.Name, r.State, r.StatusText, strconv.FormatBool(r.Cancelled), r.CreatedAt}
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var workflowID string
	var state string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(ListRunsOpts{
				WorkflowID: workflowID,
				State:      state,
				Limit:      limit,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i := range runs {
				rows[i] = runRow(&runs[i])
			}

			out.Print(runHeaders, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "Filter by workflow ID")
	cmd.Flags().StringVar(&state, "state", "", "Filter by state (pending, initialized, running, finished, failed, deleted)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var inputs []string

	cmd := &cobra.Command{
		Use:   "start WORKFLOW_ID",
		Short: "Start a new run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := CreateRunRequest{WorkflowID: args[0], Name: name}
			parsed, err := parseInputs(inputs)
			if err != nil {
				return err
			}
			req.Inputs = parsed

			run, err := client.CreateRun(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run created: %s", run.ID))
			out.Print(runHeaders, [][]string{runRow(run)}, run)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Run name (workflow title if not specified)")
	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Input values as NAME=VALUE (repeatable)")

	return cmd
}

// parseInputs разбирает значения вида NAME=VALUE. Значение может содержать '='.
func parseInputs(kvs []string) ([]InputRequest, error) {
	var inputs []InputRequest
	for _, kv := range kvs {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid input format %q, expected NAME=VALUE", kv)
		}
		inputs = append(inputs, InputRequest{Name: name, Value: value})
	}
	return inputs, nil
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Detail([]Field{
				{"Run", run.ID},
				{"Name", run.Name},
				{"Workflow", run.WorkflowID},
				{"Remote run", run.RemoteID},
				{"State", run.State},
				{"Status", run.StatusText},
				{"Cancel requested", cancelFlag(run.Cancelled)},
				{"Created", run.CreatedAt},
				{"Started", run.StartTime},
				{"Finished", run.FinishTime},
				{"Results", run.ResultsRef},
				{"Log", run.LogRef},
				{"Failure", firstLine(run.FailureMessage)},
			}, run)
			return nil
		},
	}
}

func newRunCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Request cancellation of an active run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.CancelRun(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Cancellation requested: %s", run.ID))
			return nil
		},
	}
}

func newRunInputsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "inputs RUN_ID",
		Short: "List run inputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := clientFn().ListInputs(args[0])
			if err != nil {
				return err
			}
			printPorts(outputFn(), ports)
			return nil
		},
	}
}

func newRunOutputsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "outputs RUN_ID",
		Short: "List run outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := clientFn().ListOutputs(args[0])
			if err != nil {
				return err
			}
			printPorts(outputFn(), ports)
			return nil
		},
	}
}

func printPorts(out *Output, ports []PortResponse) {
	headers := []string{"NAME", "DEPTH", "TYPE", "VALUE"}
	rows := make([][]string, len(ports))
	for i, p := range ports {
		value := p.Value
		if p.Truncated {
			value += "..."
		}
		typ, _ := p.Metadata["type"].(string)
		rows[i] = []string{p.Name, strconv.Itoa(p.Depth), typ, firstLine(value)}
	}
	out.Print(headers, rows, ports)
}

func newRunInteractionsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "interactions RUN_ID",
		Short: "List run interactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := clientFn().ListInteractions(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "REPLIED", "PAGE", "CREATED"}
			rows := make([][]string, len(items))
			for i, it := range items {
				rows[i] = []string{it.ID, strconv.FormatBool(it.Replied), it.ProxyPath, it.CreatedAt}
			}

			outputFn().Print(headers, rows, items)
			return nil
		},
	}
}

func newRunReplyCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var feed string
	var value string

	cmd := &cobra.Command{
		Use:   "reply RUN_ID INTERACTION_ID",
		Short: "Reply to a pending interaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().Reply(args[0], args[1], feed, value); err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("Reply stored for interaction %s", args[1]))
			return nil
		},
	}

	cmd.Flags().StringVar(&feed, "feed", "", "Feed identifier of the reply")
	cmd.Flags().StringVar(&value, "value", "", "Reply value")
	cmd.MarkFlagRequired("feed")
	cmd.MarkFlagRequired("value")

	return cmd
}

func cancelFlag(cancelled bool) string {
	if cancelled {
		return "yes"
	}
	return ""
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
