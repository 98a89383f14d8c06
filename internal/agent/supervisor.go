package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/haasonsaas/nexus/internal/llm"
	"github.com/haasonsaas/nexus/internal/tools"
)

// StepStatus tracks one multi-step plan step's lifecycle.
type StepStatus string

const (
	StepPending            StepStatus = "pending"
	StepDone               StepStatus = "done"
	StepCancelled          StepStatus = "cancelled"
	StepNeedsClarification StepStatus = "needs_clarification"
)

// Step is one tool invocation within an ExecutionPlan.
type Step struct {
	ID     string
	Tool   string
	Params map[string]any
	Reason string
	Status StepStatus
	Result *tools.Result
}

// ExecutionPlan is the Supervisor's chosen course of action for one turn.
type ExecutionPlan struct {
	Goal  string
	Mode  ExecutionMode
	Steps []*Step
}

// NeedInput is the structured pause the Supervisor yields when a
// multi-step plan reaches a step requiring confirmation. The caller
// collects a reply and resumes via Supervisor.ContinuePlan.
type NeedInput struct {
	Prompt string
	StepID string
	Plan   *ExecutionPlan
}

// PendingConfirmation is the Supervisor's confirmation-bookkeeping state.
// It is held by the caller between turns (session/channel layer, not the
// Supervisor) and echoed back on the next Handle call via
// HandleRequest.Pending. This is the explicit struct-returned-and-echoed-
// back design named in the original's confirmation re-entry note, chosen
// over a hidden mutable field: the Supervisor is a pure function of
// (input, pending) -> (output, new pending), matching how
// internal/agent/steering.go's queue is fed back into the loop by its
// caller rather than latched internally.
type PendingConfirmation struct {
	Tool   string
	Params map[string]any
}

// ResponseChunk is one element of a turn's lazy output sequence: a text
// fragment, a structured need_input pause, or a terminal error. The
// channel returned by Handle/ContinuePlan is closed after the chunk with
// Final set to true (or after a NeedInput chunk, which is always final
// for the turn that produced it). NewPending carries the confirmation
// state the caller must echo back on the next turn; it is nil once no
// confirmation is pending.
type ResponseChunk struct {
	Text       string
	NeedInput  *NeedInput
	Err        error
	Final      bool
	NewPending *PendingConfirmation
}

// HandleRequest is the input to one Supervisor turn.
type HandleRequest struct {
	UserInput     string
	History       []llm.Message
	MemoryContext string
	Pending       *PendingConfirmation
	Identity      *Identity
}

// FastClassifier maps a fast-path intent directly to a tool call,
// bypassing LLM planning entirely. Optional; when nil or when it declines
// to classify, fast path falls through to the chat pseudo-tool.
type FastClassifier interface {
	Classify(input string) (tool string, params map[string]any, ok bool)
}

// IntentHeuristics is the configurable keyword table driving mode
// selection and reflection. Kept as a tunable policy knob (REDESIGN FLAG
// 1) rather than hardcoded logic; the default table mirrors the original
// assistant's Chinese keyword set for scenario fidelity, extended with
// English equivalents so the same heuristics work for either input
// language.
type IntentHeuristics struct {
	GreetingMaxLen   int
	Greetings        []string
	MultiStepMarkers []string
	DeleteKeywords   []string
	ViewKeywords     []string
	Affirmative      map[string]struct{}
	Negative         map[string]struct{}
}

// DefaultIntentHeuristics returns the keyword table used when a
// Supervisor is not given one explicitly, grounded on supervisor.py's
// _analyze_intent and its affirmative/negative confirmation sets.
func DefaultIntentHeuristics() IntentHeuristics {
	affirmative := map[string]struct{}{}
	for _, w := range []string{"yes", "y", "是", "确定", "确认", "好", "好的", "ok", "okay", "sure", "yeah", "yep"} {
		affirmative[w] = struct{}{}
	}
	negative := map[string]struct{}{}
	for _, w := range []string{"no", "n", "否", "不", "不要", "取消", "cancel", "nope"} {
		negative[w] = struct{}{}
	}
	return IntentHeuristics{
		GreetingMaxLen: 20,
		Greetings: []string{
			"你好", "您好", "嗨", "哈喽", "谢谢", "感谢", "再见", "拜拜",
			"hi", "hello", "hey", "thanks", "thank you", "bye", "goodbye",
		},
		MultiStepMarkers: []string{"然后", "整理并", "总结所有", "并且", "接着", "first", "then", "after that"},
		DeleteKeywords:   []string{"删除", "清理", "清空", "移除", "delete", "remove", "clear", "clean up"},
		ViewKeywords:     []string{"查看", "有什么任务", "列出", "list", "show", "what do i have", "what tasks"},
		Affirmative:      affirmative,
		Negative:         negative,
	}
}

// ReflectionPolicy governs the post-success misroute check in single-step
// mode (§4.9.1): a tunable knob (REDESIGN FLAG 1), backed by the same
// keyword tables IntentHeuristics uses for mode selection.
type ReflectionPolicy struct {
	Enabled    bool
	Heuristics IntentHeuristics
}

// DefaultReflectionPolicy enables reflection using DefaultIntentHeuristics.
func DefaultReflectionPolicy() ReflectionPolicy {
	return ReflectionPolicy{Enabled: true, Heuristics: DefaultIntentHeuristics()}
}

// reflect reports the tool to swap to, if the tool actually invoked
// contradicts the keywords in the user's input. Fires at most once per
// call (the caller only ever calls this once per turn).
func (p ReflectionPolicy) reflect(input, toolUsed string) (swapTo string, ok bool) {
	if !p.Enabled {
		return "", false
	}
	hasDelete := containsAnyFold(input, p.Heuristics.DeleteKeywords)
	hasView := containsAnyFold(input, p.Heuristics.ViewKeywords)
	switch {
	case toolUsed == "list_tasks" && hasDelete:
		return "delete_tasks", true
	case toolUsed == "delete_tasks" && hasView && !hasDelete:
		return "list_tasks", true
	}
	return "", false
}

func containsAnyFold(input string, keywords []string) bool {
	lower := strings.ToLower(input)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Supervisor is the core agent loop: it turns one user message into a
// sequence of streamed text chunks and/or confirmation pauses, by
// analyzing intent, generating a plan, and executing it against the tool
// registry. Grounded principally on original_source/src/agent/
// supervisor.py, rendered in the teacher's agentic-loop idiom (a channel
// of tagged-union chunks, context.Context cancellation throughout).
type Supervisor struct {
	LLM            llm.Adapter
	Tools          *tools.Registry
	ContextBuilder *ContextBuilder
	Metrics        *Metrics
	Heuristics     IntentHeuristics
	Reflection     ReflectionPolicy
	FastClassifier FastClassifier

	MaxSteps      int
	StepTimeout   time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// NewSupervisor wires a Supervisor from its required collaborators,
// applying sensible defaults for the policy knobs.
func NewSupervisor(adapter llm.Adapter, registry *tools.Registry, builder *ContextBuilder, metrics *Metrics) *Supervisor {
	if builder == nil {
		builder = NewContextBuilder()
	}
	if metrics == nil {
		metrics = NewMetrics(false)
	}
	return &Supervisor{
		LLM:            adapter,
		Tools:          registry,
		ContextBuilder: builder,
		Metrics:        metrics,
		Heuristics:     DefaultIntentHeuristics(),
		Reflection:     DefaultReflectionPolicy(),
		MaxSteps:       10,
		StepTimeout:    30 * time.Second,
		RetryAttempts:  3,
		RetryDelay:     500 * time.Millisecond,
	}
}

// Handle processes one user turn and returns a channel of streamed
// response chunks. The channel is closed once the turn completes; the
// caller drives consumption and should read NewPending off the last chunk
// to know what confirmation state (if any) to echo back next turn.
func (s *Supervisor) Handle(ctx context.Context, req HandleRequest) <-chan ResponseChunk {
	out := make(chan ResponseChunk, 4)
	go func() {
		defer close(out)
		s.run(ctx, req, out)
	}()
	return out
}

func (s *Supervisor) run(ctx context.Context, req HandleRequest, out chan<- ResponseChunk) {
	if req.Pending != nil {
		s.handleConfirmationReentry(ctx, req, out)
		return
	}

	input := strings.TrimSpace(req.UserInput)
	if input == "" {
		out <- ResponseChunk{Text: "I didn't catch anything — could you say that again?", Final: true}
		return
	}

	mode := s.analyzeIntent(input)
	s.Metrics.RecordMode(mode)

	plan, err := s.plan(ctx, mode, req)
	if err != nil {
		s.Metrics.RecordError(err.Error())
		out <- ResponseChunk{Text: "Something went wrong while I was figuring out what to do: " + err.Error(), Final: true}
		return
	}

	switch plan.Mode {
	case ModeFastPath:
		s.executeFastPath(ctx, req, out)
	case ModeMultiStep:
		s.resumeMultiStep(ctx, plan, 0, out)
	default:
		s.executeSingleStep(ctx, req, plan, out)
	}
}

// handleConfirmationReentry resolves a single-step confirmation latch:
// affirmative re-invokes the pending tool with confirmed=true (and
// delete_all=true for delete_tasks if unspecified); negative cancels;
// anything else clears the latch and the turn is processed fresh.
func (s *Supervisor) handleConfirmationReentry(ctx context.Context, req HandleRequest, out chan<- ResponseChunk) {
	pending := req.Pending
	reply := strings.ToLower(strings.TrimSpace(req.UserInput))

	if _, ok := s.Heuristics.Affirmative[reply]; ok {
		params := map[string]any{}
		for k, v := range pending.Params {
			params[k] = v
		}
		params["confirmed"] = true
		if pending.Tool == "delete_tasks" {
			if _, has := params["delete_all"]; !has {
				params["delete_all"] = true
			}
		}
		result := s.callTool(ctx, pending.Tool, params)
		out <- ResponseChunk{Text: result.Observation, Final: true}
		return
	}

	if _, ok := s.Heuristics.Negative[reply]; ok {
		out <- ResponseChunk{Text: "Okay, cancelled.", Final: true}
		return
	}

	fresh := req
	fresh.Pending = nil
	s.run(ctx, fresh, out)
}

// analyzeIntent picks an execution mode without any LLM call, in the
// order the original checks them: short greeting, multi-step marker,
// delete keyword, view keyword, default.
func (s *Supervisor) analyzeIntent(input string) ExecutionMode {
	h := s.Heuristics
	if utf8.RuneCountInString(input) < h.GreetingMaxLen && containsAnyFold(input, h.Greetings) {
		return ModeFastPath
	}
	if containsAnyFold(input, h.MultiStepMarkers) {
		return ModeMultiStep
	}
	if containsAnyFold(input, h.DeleteKeywords) {
		return ModeSingleStep
	}
	if containsAnyFold(input, h.ViewKeywords) {
		return ModeSingleStep
	}
	return ModeSingleStep
}

func (s *Supervisor) plan(ctx context.Context, mode ExecutionMode, req HandleRequest) (*ExecutionPlan, error) {
	switch mode {
	case ModeFastPath:
		return &ExecutionPlan{Mode: ModeFastPath, Goal: req.UserInput}, nil
	case ModeMultiStep:
		return s.planMultiStep(ctx, req)
	default:
		return s.planSingleStep(ctx, req)
	}
}

func (s *Supervisor) planSingleStep(ctx context.Context, req HandleRequest) (*ExecutionPlan, error) {
	messages := s.buildMessages(req)
	specs := toolSpecs(s.Tools)

	start := time.Now()
	resp, err := s.LLM.Chat(ctx, messages, specs, llm.ToolChoiceAuto, 0.3, 0)
	s.Metrics.RecordLLMCall(s.LLM.Name(), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("single-step planning: %w", err)
	}

	if len(resp.ToolCalls) == 0 {
		return &ExecutionPlan{
			Mode: ModeSingleStep,
			Goal: req.UserInput,
			Steps: []*Step{
				{ID: "1", Tool: "chat", Params: map[string]any{"message": req.UserInput}, Status: StepPending},
			},
		}, nil
	}

	call := resp.ToolCalls[0]
	return &ExecutionPlan{
		Mode:  ModeSingleStep,
		Goal:  req.UserInput,
		Steps: []*Step{{ID: call.ID, Tool: call.Name, Params: call.Arguments, Status: StepPending}},
	}, nil
}

// planMultiStep asks for a JSON plan, retrying with a linearly growing delay (RetryDelay*(attempt+1))
// on parse or call failure. After exhausting retries it demotes to
// single-step planning rather than surfacing a plan error to the user.
func (s *Supervisor) planMultiStep(ctx context.Context, req HandleRequest) (*ExecutionPlan, error) {
	messages := s.buildMessages(req)
	messages = append(messages, llm.Message{
		Role: "system",
		Content: "Respond with a single JSON object and nothing else: " +
			`{"goal": string, "steps": [{"tool": string, "params": object, "reason": string}]}.`,
	})

	var lastErr error
	for attempt := 0; attempt < s.RetryAttempts; attempt++ {
		start := time.Now()
		resp, err := s.LLM.Chat(ctx, messages, nil, llm.ToolChoiceNone, 0.2, 0)
		s.Metrics.RecordLLMCall(s.LLM.Name(), time.Since(start))
		if err != nil {
			lastErr = err
		} else if plan, perr := parseMultiStepPlan(resp.Content); perr == nil {
			return plan, nil
		} else {
			lastErr = perr
		}

		if attempt < s.RetryAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.RetryDelay * time.Duration(attempt+1)):
			}
		}
	}

	s.Metrics.RecordError(fmt.Sprintf("multi-step planning exhausted retries, demoting to single-step: %v", lastErr))
	return s.planSingleStep(ctx, req)
}

type multiStepPlanJSON struct {
	Goal  string `json:"goal"`
	Steps []struct {
		Tool   string         `json:"tool"`
		Params map[string]any `json:"params"`
		Reason string         `json:"reason"`
	} `json:"steps"`
}

// parseMultiStepPlan accepts either pure JSON or text with a single
// {...} object embedded in it (models often wrap JSON in prose despite
// instructions not to).
func parseMultiStepPlan(raw string) (*ExecutionPlan, error) {
	raw = strings.TrimSpace(raw)

	var parsed multiStepPlanJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		start := strings.IndexByte(raw, '{')
		end := strings.LastIndexByte(raw, '}')
		if start < 0 || end <= start {
			return nil, fmt.Errorf("no JSON object found in plan response")
		}
		if err2 := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err2 != nil {
			return nil, fmt.Errorf("parse multi-step plan: %w", err2)
		}
	}
	if len(parsed.Steps) == 0 {
		return nil, fmt.Errorf("multi-step plan has no steps")
	}

	plan := &ExecutionPlan{Goal: parsed.Goal, Mode: ModeMultiStep}
	for i, st := range parsed.Steps {
		plan.Steps = append(plan.Steps, &Step{
			ID:     strconv.Itoa(i + 1),
			Tool:   st.Tool,
			Params: st.Params,
			Reason: st.Reason,
			Status: StepPending,
		})
	}
	return plan, nil
}

func (s *Supervisor) buildMessages(req HandleRequest) []llm.Message {
	system := s.ContextBuilder.Build(BuildContext{
		UserInput:     req.UserInput,
		MemoryContext: req.MemoryContext,
		Identity:      req.Identity,
		Tools:         s.Tools.List(),
	})
	messages := make([]llm.Message, 0, len(req.History)+2)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	messages = append(messages, req.History...)
	messages = append(messages, llm.Message{Role: "user", Content: req.UserInput})
	return messages
}

func toolSpecs(registry *tools.Registry) []llm.ToolSpec {
	catalog := registry.List()
	out := make([]llm.ToolSpec, 0, len(catalog))
	for _, t := range catalog {
		schema := tools.Schema(t)
		fn, _ := schema["function"].(map[string]any)
		params, _ := fn["parameters"].(map[string]any)
		out = append(out, llm.ToolSpec{Name: t.Name(), Description: t.Description(), Parameters: params})
	}
	return out
}

func (s *Supervisor) callTool(ctx context.Context, name string, params map[string]any) *tools.Result {
	start := time.Now()
	result := s.Tools.Execute(ctx, name, s.StepTimeout, params)
	s.Metrics.RecordToolCall(name, result.Success, time.Since(start))
	return result
}

// executeFastPath bypasses LLM planning: a configured FastClassifier maps
// intent directly to a tool, or the turn streams a direct chat reply.
func (s *Supervisor) executeFastPath(ctx context.Context, req HandleRequest, out chan<- ResponseChunk) {
	if s.FastClassifier != nil {
		if tool, params, ok := s.FastClassifier.Classify(req.UserInput); ok && tool != "" && tool != "chat" {
			result := s.callTool(ctx, tool, params)
			out <- ResponseChunk{Text: result.Observation, Final: true}
			return
		}
	}
	s.streamChat(ctx, req, out)
}

func (s *Supervisor) streamChat(ctx context.Context, req HandleRequest, out chan<- ResponseChunk) {
	messages := s.buildMessages(req)

	start := time.Now()
	stream, err := s.LLM.Stream(ctx, messages)
	s.Metrics.RecordLLMCall(s.LLM.Name(), time.Since(start))
	if err != nil {
		s.Metrics.RecordError(err.Error())
		out <- ResponseChunk{Text: "I ran into a problem generating a reply: " + err.Error(), Err: err, Final: true}
		return
	}

	var wroteText bool
	for chunk := range stream {
		if chunk.Error != nil {
			s.Metrics.RecordError(chunk.Error.Error())
			out <- ResponseChunk{Text: "I ran into a problem while replying: " + chunk.Error.Error(), Err: chunk.Error, Final: true}
			return
		}
		if chunk.Text != "" {
			wroteText = true
			out <- ResponseChunk{Text: chunk.Text}
		}
	}
	if !wroteText {
		out <- ResponseChunk{Text: "...", Final: true}
		return
	}
	out <- ResponseChunk{Final: true}
}

// executeSingleStep runs the one step the plan produced, applies
// reflection on success, and latches confirmation if the tool asked for
// one.
func (s *Supervisor) executeSingleStep(ctx context.Context, req HandleRequest, plan *ExecutionPlan, out chan<- ResponseChunk) {
	step := plan.Steps[0]

	if step.Tool == "chat" {
		s.streamChat(ctx, req, out)
		return
	}

	result := s.callTool(ctx, step.Tool, step.Params)
	step.Result = result
	step.Status = StepDone

	toolUsed := step.Tool
	if result.Success {
		if swapTo, ok := s.Reflection.reflect(req.UserInput, toolUsed); ok {
			result = s.callTool(ctx, swapTo, map[string]any{})
			toolUsed = swapTo
		}
	}

	if result.NeedsConfirmation() {
		prompt := s.ContextBuilder.BuildForConfirmation(result.Observation)
		out <- ResponseChunk{
			Text:       prompt,
			Final:      true,
			NewPending: &PendingConfirmation{Tool: toolUsed, Params: step.Params},
		}
		return
	}

	out <- ResponseChunk{Text: result.Observation, Final: true}
}

// resumeMultiStep executes plan.Steps[from:], pausing with a NeedInput
// chunk the first time a step needs confirmation. ContinuePlan resumes
// from the step after the one that paused.
func (s *Supervisor) resumeMultiStep(ctx context.Context, plan *ExecutionPlan, from int, out chan<- ResponseChunk) {
	steps := plan.Steps
	limit := len(steps)
	if limit > s.MaxSteps {
		limit = s.MaxSteps
	}

	for i := from; i < limit; i++ {
		step := steps[i]
		result := s.callTool(ctx, step.Tool, step.Params)
		step.Result = result

		if result.NeedsConfirmation() {
			step.Status = StepNeedsClarification
			prompt := s.ContextBuilder.BuildForConfirmation(result.Observation)
			out <- ResponseChunk{
				NeedInput:  &NeedInput{Prompt: prompt, StepID: step.ID, Plan: plan},
				NewPending: &PendingConfirmation{Tool: step.Tool, Params: step.Params},
			}
			return
		}

		step.Status = StepDone
		out <- ResponseChunk{Text: formatStepObservation(i, len(steps), step, result)}
	}

	out <- ResponseChunk{Final: true}
}

// ContinuePlan resumes a multi-step plan paused at a NeedInput pause,
// given the user's reply to the confirmation prompt. On affirmative, the
// paused step's params are flipped to confirmed (and delete_all for
// delete_tasks) and the plan resumes from the next step; on negative, the
// step is marked cancelled and the plan resumes from the next step.
func (s *Supervisor) ContinuePlan(ctx context.Context, plan *ExecutionPlan, stepID string, userReply string) <-chan ResponseChunk {
	out := make(chan ResponseChunk, 4)
	go func() {
		defer close(out)

		idx := -1
		for i, st := range plan.Steps {
			if st.ID == stepID {
				idx = i
				break
			}
		}
		if idx < 0 {
			out <- ResponseChunk{Text: "I lost track of that step, let's start over.", Final: true}
			return
		}

		step := plan.Steps[idx]
		reply := strings.ToLower(strings.TrimSpace(userReply))

		if _, ok := s.Heuristics.Affirmative[reply]; ok {
			params := map[string]any{}
			for k, v := range step.Params {
				params[k] = v
			}
			params["confirmed"] = true
			if step.Tool == "delete_tasks" {
				if _, has := params["delete_all"]; !has {
					params["delete_all"] = true
				}
			}
			result := s.callTool(ctx, step.Tool, params)
			step.Result = result
			step.Status = StepDone
			out <- ResponseChunk{Text: formatStepObservation(idx, len(plan.Steps), step, result)}
		} else {
			step.Status = StepCancelled
			out <- ResponseChunk{Text: fmt.Sprintf("[%d/%d] %s... cancelled", idx+1, len(plan.Steps), step.Tool)}
		}

		s.resumeMultiStep(ctx, plan, idx+1, out)
	}()
	return out
}

func formatStepObservation(i, total int, step *Step, result *tools.Result) string {
	mark := "✓"
	if !result.Success {
		mark = "✗"
	}
	return fmt.Sprintf("[%d/%d] %s... %s %s", i+1, total, step.Tool, mark, result.Observation)
}
