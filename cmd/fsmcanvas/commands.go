package main

import (
	"os"
	"sort"

	apperrors "github.com/goliatone/go-errors"

	"github.com/pschleger/workflow-canvas-sub000/reconcile"
	"github.com/pschleger/workflow-canvas-sub000/settings"
	"github.com/pschleger/workflow-canvas-sub000/transitionid"
	"github.com/pschleger/workflow-canvas-sub000/workflow"
)

var (
	errNothingToUndo = apperrors.New("nothing to undo", apperrors.CategoryBadInput).
				WithTextCode("CLI_NOTHING_TO_UNDO")
	errNothingToRedo = apperrors.New("nothing to redo", apperrors.CategoryBadInput).
				WithTextCode("CLI_NOTHING_TO_REDO")
	errBadTransitionID = apperrors.New("not a transition id", apperrors.CategoryBadInput).
				WithTextCode("CLI_BAD_TRANSITION_ID")
)

// CLI is the kong model of the fsmcanvas tool.
type CLI struct {
	Config   string `help:"Path to a YAML config file." type:"path" env:"FSMCANVAS_CONFIG"`
	Session  string `help:"Session id scoping history records (overrides config)."`
	LogLevel string `name:"log-level" help:"Log level (trace, debug, info, warn, error)."`

	ID        IDCmd        `cmd:"" name:"id" help:"Transition identifier codec."`
	Reconcile ReconcileCmd `cmd:"" help:"Prune layout entries that no longer match the configuration."`
	Validate  ValidateCmd  `cmd:"" help:"Report configuration diagnostics."`
	History   HistoryCmd   `cmd:"" help:"Per-workflow undo/redo timelines."`
	Settings  SettingsCmd  `cmd:"" help:"Timeline settings."`
}

type IDCmd struct {
	Generate IDGenerateCmd `cmd:"" help:"Build a transition id."`
	Parse    IDParseCmd    `cmd:"" help:"Split a transition id into its parts."`
	Validate IDValidateCmd `cmd:"" help:"Check a transition id against a workflow document."`
	List     IDListCmd     `cmd:"" help:"List the ids of every transition in a workflow document."`
}

type IDGenerateCmd struct {
	Source  string `arg:"" help:"Source state id."`
	Target  string `arg:"" optional:"" help:"Target state id."`
	Ordinal int    `help:"Build the ordinal form for this transition index." default:"-1"`
}

func (c *IDGenerateCmd) Run(app *App) error {
	if c.Ordinal >= 0 {
		app.println(transitionid.GenerateOrdinal(c.Source, c.Ordinal))
		return nil
	}
	if c.Target == "" {
		return errBadTransitionID.Clone().WithMetadata(map[string]any{"reason": "target or --ordinal required"})
	}
	app.println(transitionid.Generate(c.Source, c.Target))
	return nil
}

type IDParseCmd struct {
	Value string `arg:"" name:"id" help:"Transition id."`
}

type parsedID struct {
	Form    string `json:"form"`
	Source  string `json:"source"`
	Target  string `json:"target,omitempty"`
	Ordinal *int   `json:"ordinal,omitempty"`
}

func (c *IDParseCmd) Run(app *App) error {
	if pair, ok := transitionid.Parse(c.Value); ok {
		return app.printJSON(parsedID{Form: "target", Source: pair.Source, Target: pair.Target})
	}
	if source, ordinal, ok := transitionid.ParseOrdinal(c.Value); ok {
		return app.printJSON(parsedID{Form: "ordinal", Source: source, Ordinal: &ordinal})
	}
	return errBadTransitionID.Clone().WithMetadata(map[string]any{"id": c.Value})
}

type IDValidateCmd struct {
	Value string `arg:"" name:"id" help:"Transition id."`
	File  string `arg:"" type:"existingfile" help:"Workflow document (JSON or YAML)."`
}

func (c *IDValidateCmd) Run(app *App) error {
	w, err := readWorkflow(c.File)
	if err != nil {
		return err
	}
	app.println(transitionid.Validate(c.Value, transitionid.KnownStates(w.Configuration)))
	return nil
}

type IDListCmd struct {
	File string `arg:"" type:"existingfile" help:"Workflow document (JSON or YAML)."`
}

func (c *IDListCmd) Run(app *App) error {
	w, err := readWorkflow(c.File)
	if err != nil {
		return err
	}
	ids := transitionid.IDs(w.Configuration)
	keys := make([]string, 0, len(ids))
	for k := range ids {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		app.println(k, ids[k])
	}
	return nil
}

type ReconcileCmd struct {
	File   string `arg:"" type:"existingfile" help:"Workflow document (JSON or YAML)."`
	Output string `short:"o" help:"Write the reconciled document here instead of stdout." type:"path"`
}

func (c *ReconcileCmd) Run(app *App) error {
	w, err := readWorkflow(c.File)
	if err != nil {
		return err
	}
	out, report := reconcile.New(reconcile.WithLogger(app.logger)).ReconcileWithReport(w)
	app.logger.Info("reconcile: pruned %d state(s), %d transition(s)",
		len(report.PrunedStates), len(report.PrunedTransitions))

	payload, err := workflow.Marshal(out)
	if err != nil {
		return err
	}
	if c.Output != "" {
		return os.WriteFile(c.Output, payload, 0o644)
	}
	_, err = app.out.Write(append(payload, '\n'))
	return err
}

type ValidateCmd struct {
	File string `arg:"" type:"existingfile" help:"Workflow document (JSON or YAML)."`
}

func (c *ValidateCmd) Run(app *App) error {
	w, err := readWorkflow(c.File)
	if err != nil {
		return err
	}
	return app.printJSON(workflow.Validate(w.Configuration))
}

type HistoryCmd struct {
	Push  HistoryPushCmd  `cmd:"" help:"Record a workflow document as the newest entry."`
	Undo  HistoryUndoCmd  `cmd:"" help:"Step back and print the restored workflow."`
	Redo  HistoryRedoCmd  `cmd:"" help:"Step forward and print the restored workflow."`
	Info  HistoryInfoCmd  `cmd:"" help:"Print timeline counters."`
	Clear HistoryClearCmd `cmd:"" help:"Drop one timeline, or all of them."`
}

type HistoryPushCmd struct {
	WorkflowID  string `arg:"" name:"workflow-id" help:"Workflow id."`
	File        string `arg:"" type:"existingfile" help:"Workflow document (JSON or YAML)."`
	Description string `short:"d" help:"Entry description." default:"Update workflow"`
	Reconcile   bool   `help:"Reconcile the document before recording it." default:"true" negatable:""`
}

func (c *HistoryPushCmd) Run(app *App) error {
	w, err := readWorkflow(c.File)
	if err != nil {
		return err
	}
	if c.Reconcile {
		w = reconcile.New(reconcile.WithLogger(app.logger)).Reconcile(w)
	}
	store := app.History()
	if err := store.AddEntry(app.ctx, c.WorkflowID, w, c.Description); err != nil {
		return err
	}
	info, _ := store.Info(c.WorkflowID)
	return app.printJSON(info)
}

type HistoryUndoCmd struct {
	WorkflowID string `arg:"" name:"workflow-id" help:"Workflow id."`
}

func (c *HistoryUndoCmd) Run(app *App) error {
	w, ok := app.History().Undo(app.ctx, c.WorkflowID)
	if !ok {
		return errNothingToUndo.Clone().WithMetadata(map[string]any{"workflow_id": c.WorkflowID})
	}
	return app.printJSON(w)
}

type HistoryRedoCmd struct {
	WorkflowID string `arg:"" name:"workflow-id" help:"Workflow id."`
}

func (c *HistoryRedoCmd) Run(app *App) error {
	w, ok := app.History().Redo(app.ctx, c.WorkflowID)
	if !ok {
		return errNothingToRedo.Clone().WithMetadata(map[string]any{"workflow_id": c.WorkflowID})
	}
	return app.printJSON(w)
}

type HistoryInfoCmd struct{}

func (c *HistoryInfoCmd) Run(app *App) error {
	return app.printJSON(app.History().DebugInfo())
}

type HistoryClearCmd struct {
	WorkflowID string `arg:"" name:"workflow-id" optional:"" help:"Workflow id; omit with --all."`
	All        bool   `help:"Drop every timeline of the session."`
}

func (c *HistoryClearCmd) Run(app *App) error {
	store := app.History()
	switch {
	case c.All:
		store.ClearAllHistory(app.ctx)
	case c.WorkflowID != "":
		store.ClearWorkflowHistory(app.ctx, c.WorkflowID)
	default:
		return apperrors.New("workflow id or --all required", apperrors.CategoryBadInput).
			WithTextCode("CLI_CLEAR_TARGET_REQUIRED")
	}
	return app.printJSON(store.DebugInfo())
}

type SettingsCmd struct {
	Show  SettingsShowCmd  `cmd:"" help:"Print the current settings."`
	Set   SettingsSetCmd   `cmd:"" help:"Change settings; unset flags keep their value."`
	Reset SettingsResetCmd `cmd:"" help:"Restore factory settings."`
}

type SettingsShowCmd struct{}

func (c *SettingsShowCmd) Run(app *App) error {
	return app.printJSON(app.Settings().Get())
}

type SettingsSetCmd struct {
	MaxDepth *int  `name:"max-depth" help:"Maximum retained timeline entries."`
	DarkMode *bool `name:"dark-mode" help:"Editor dark mode."`
}

func (c *SettingsSetCmd) Run(app *App) error {
	patch := settings.Patch{}
	if c.MaxDepth != nil {
		patch.History = &settings.HistoryPatch{MaxDepth: c.MaxDepth}
	}
	if c.DarkMode != nil {
		patch.UI = &settings.UIPatch{DarkMode: c.DarkMode}
	}
	return app.printJSON(app.Settings().Update(app.ctx, patch))
}

type SettingsResetCmd struct{}

func (c *SettingsResetCmd) Run(app *App) error {
	return app.printJSON(app.Settings().ResetToDefaults(app.ctx))
}

func readWorkflow(path string) (workflow.Workflow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return workflow.Workflow{}, err
	}
	return workflow.Parse(raw)
}
