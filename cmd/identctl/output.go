package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/plastinin/identtracker/internal/domain"
	"github.com/spf13/cobra"
)

// writeJSON пишет v в stdout команды с отступами
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTasks(cmd *cobra.Command, asJSON bool, tasks []domain.TaskSnapshot) error {
	if asJSON {
		return writeJSON(cmd, tasks)
	}

	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, taskRow(t))
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Task", "State", "Progress", "Stage", "Message", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	))
	return nil
}

func taskRow(t domain.TaskSnapshot) []string {
	message := t.Message
	if t.ErrorMessage != "" {
		message = t.ErrorMessage
	}
	return []string{
		t.ID,
		t.State.String(),
		strconv.Itoa(t.Progress) + "%",
		t.Stage,
		message,
		t.UpdatedAt.Local().Format(time.DateTime),
	}
}

func printScores(cmd *cobra.Command, asJSON bool, result *domain.Result, top int) error {
	scores := result.TopK(top)
	if asJSON {
		return writeJSON(cmd, struct {
			TaskID string             `json:"task_id"`
			Top    []domain.NodeScore `json:"top"`
			Meta   map[string]any     `json:"meta,omitempty"`
		}{result.TaskID, scores, result.Meta})
	}

	rows := make([][]string, 0, len(scores))
	for i, s := range scores {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			s.NodeID,
			strconv.FormatFloat(s.Score, 'f', 6, 64),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"#", "Node", "Score"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight},
	))
	return nil
}
