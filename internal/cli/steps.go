package cli

import (
	"fmt"
	"strconv"

	"github.com/shaiso/Provisio/internal/domain"
	"github.com/shaiso/Provisio/internal/orchestrator"
	"github.com/spf13/cobra"
)

// stepInfo — шаг мастера с прогрессом.
type stepInfo struct {
	Index   int         `json:"index"`
	Step    domain.Step `json:"step"`
	Percent int         `json:"percent"`
}

// NewStepsCmd создаёт команду со списком шагов мастера.
func NewStepsCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List wizard steps with their progress percentages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := stepInfos()

			rows := make([][]string, len(steps))
			for i, s := range steps {
				rows[i] = []string{strconv.Itoa(s.Index), string(s.Step), fmt.Sprintf("%d%%", s.Percent)}
			}

			outputFn().Print([]string{"#", "STEP", "PROGRESS"}, rows, steps)
			return nil
		},
	}
}

func stepInfos() []stepInfo {
	steps := make([]stepInfo, len(domain.CanonicalSteps))
	for i, s := range domain.CanonicalSteps {
		steps[i] = stepInfo{Index: i, Step: s, Percent: orchestrator.Percent(s)}
	}
	return steps
}
