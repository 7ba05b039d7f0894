package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
)

// NewWorkflowCmd создаёт группу команд для документов workflow.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage workflow documents",
	}

	cmd.AddCommand(newWorkflowUploadCmd(clientFn, outputFn))

	return cmd
}

func newWorkflowUploadCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a workflow document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			document, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read workflow: %w", err)
			}
			if title == "" {
				title = filepath.Base(args[0])
			}

			wf, err := clientFn().CreateWorkflow(title, document)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Success(fmt.Sprintf("Workflow uploaded: %s", wf.ID))
			out.Print([]string{"ID", "TITLE", "SIZE"}, [][]string{{wf.ID, wf.Title, strconv.Itoa(wf.Size)}}, wf)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Workflow title (file name if not specified)")

	return cmd
}
