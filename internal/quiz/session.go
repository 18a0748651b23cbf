package quiz

import (
	"errors"
	"fmt"
	"maps"

	"github.com/nyashahama/crushbot-backend/internal/ai"
	"github.com/nyashahama/crushbot-backend/internal/scoring"
)

// ─── ERRORS ───────────────────────────────────────────────────────────────────

var (
	// ErrWrongStage means the event is not legal in the session's current stage.
	ErrWrongStage = errors.New("quiz: event not allowed in current stage")

	// ErrQuestionOutOfOrder means an answer named a question other than the
	// current one. Answers are strictly sequential; there is no going back.
	ErrQuestionOutOfOrder = errors.New("quiz: answer is not for the current question")

	// ErrInvalidAnswer means the value is not legal for the question's modality.
	ErrInvalidAnswer = errors.New("quiz: invalid answer for question")

	// ErrNotSlider means a slider event arrived while the current question is
	// not a slider.
	ErrNotSlider = errors.New("quiz: current question is not a slider")
)

// ─── STAGES ───────────────────────────────────────────────────────────────────

// Stage is the screen a session is on.
type Stage string

const (
	StageIntro     Stage = "intro"
	StageQuestions Stage = "questions"
	StageLoading   Stage = "loading"
	StageResult    Stage = "result"
	StageFeedback  Stage = "feedback"
)

// ─── SESSION ──────────────────────────────────────────────────────────────────

// Session is one visitor's run through the catalog:
//
//	intro → questions(0..N-1) → loading → result → feedback
//	result|feedback --Reset--> intro
//
// It is not safe for concurrent use; Registry serialises access.
type Session struct {
	catalog *Catalog

	stage   Stage
	current int
	answers scoring.AnswerSet
	slider  float64

	// byQuestion mirrors answers keyed by question ID.
	byQuestion map[string]float64

	result      *scoring.Result
	explanation *ai.Explanation
	accurate    *bool
	thankYou    bool
}

// NewSession returns a session on the intro screen.
func NewSession(c *Catalog) *Session {
	s := &Session{catalog: c}
	s.clear()
	return s
}

func (s *Session) clear() {
	s.stage = StageIntro
	s.current = 0
	s.answers = scoring.AnswerSet{}
	s.byQuestion = map[string]float64{}
	s.slider = 0
	s.result = nil
	s.explanation = nil
	s.accurate = nil
	s.thankYou = false
}

// Stage returns the current stage.
func (s *Session) Stage() Stage { return s.stage }

// Current returns the index of the question being asked. Only meaningful in
// StageQuestions.
func (s *Session) Current() int { return s.current }

// Start leaves the intro and shows question 0.
func (s *Session) Start() error {
	if s.stage != StageIntro {
		return fmt.Errorf("start from %s: %w", s.stage, ErrWrongStage)
	}
	s.stage = StageQuestions
	s.enter(0)
	return nil
}

// enter moves to question i. Landing on a slider resets its working value to
// the midpoint.
func (s *Session) enter(i int) {
	s.current = i
	if q, ok := s.catalog.Question(i); ok && q.Type == TypeSlider && q.Slider != nil {
		s.slider = q.Slider.Midpoint()
	}
}

// Answer records v for question i. It returns done=true together with a
// frozen copy of the answers when i was the last question; the session is then
// in StageLoading and no further answers are accepted.
func (s *Session) Answer(i int, v float64) (frozen scoring.AnswerSet, done bool, err error) {
	if s.stage != StageQuestions {
		return nil, false, fmt.Errorf("answer in %s: %w", s.stage, ErrWrongStage)
	}
	if i != s.current {
		return nil, false, fmt.Errorf("answer %d while on %d: %w", i, s.current, ErrQuestionOutOfOrder)
	}
	q, _ := s.catalog.Question(i)
	if !q.Accepts(v) {
		return nil, false, fmt.Errorf("question %s value %v: %w", q.ID, v, ErrInvalidAnswer)
	}

	s.answers.Set(q.KPI, v)
	s.byQuestion[q.ID] = v

	if i == s.catalog.Len()-1 {
		s.stage = StageLoading
		return s.answers.Clone(), true, nil
	}
	s.enter(i + 1)
	return nil, false, nil
}

// AnswerOption answers an options question by option index.
func (s *Session) AnswerOption(i, option int) (scoring.AnswerSet, bool, error) {
	if s.stage != StageQuestions {
		return nil, false, fmt.Errorf("answer in %s: %w", s.stage, ErrWrongStage)
	}
	q, ok := s.catalog.Question(i)
	if !ok || i != s.current {
		return nil, false, fmt.Errorf("answer %d while on %d: %w", i, s.current, ErrQuestionOutOfOrder)
	}
	if q.Type != TypeOptions || option < 0 || option >= len(q.Options) {
		return nil, false, fmt.Errorf("question %s option %d: %w", q.ID, option, ErrInvalidAnswer)
	}
	return s.Answer(i, q.Options[option].Value)
}

// SetSlider moves the working slider value without submitting it.
func (s *Session) SetSlider(v float64) error {
	q, err := s.currentSlider()
	if err != nil {
		return err
	}
	if !q.Slider.Contains(v) {
		return fmt.Errorf("question %s slider %v: %w", q.ID, v, ErrInvalidAnswer)
	}
	s.slider = v
	return nil
}

// SubmitSlider answers slider question i with the current working value.
func (s *Session) SubmitSlider(i int) (scoring.AnswerSet, bool, error) {
	if _, err := s.currentSlider(); err != nil {
		return nil, false, err
	}
	return s.Answer(i, s.slider)
}

func (s *Session) currentSlider() (Question, error) {
	if s.stage != StageQuestions {
		return Question{}, fmt.Errorf("slider in %s: %w", s.stage, ErrWrongStage)
	}
	q, _ := s.catalog.Question(s.current)
	if q.Type != TypeSlider || q.Slider == nil {
		return Question{}, fmt.Errorf("question %s: %w", q.ID, ErrNotSlider)
	}
	return q, nil
}

// Complete stores the scored result and its explanation and shows the result.
func (s *Session) Complete(result scoring.Result, explanation ai.Explanation) error {
	if s.stage != StageLoading {
		return fmt.Errorf("complete in %s: %w", s.stage, ErrWrongStage)
	}
	s.result = &result
	s.explanation = &explanation
	s.stage = StageResult
	return nil
}

// SubmitFeedback records the user's verdict on the result and returns the
// result it refers to. It is accepted once per result visit.
func (s *Session) SubmitFeedback(accurate bool) (scoring.Result, error) {
	if s.stage != StageResult || s.result == nil {
		return scoring.Result{}, fmt.Errorf("feedback in %s: %w", s.stage, ErrWrongStage)
	}
	s.stage = StageFeedback
	s.accurate = &accurate
	s.thankYou = true
	return *s.result, nil
}

// Reset discards everything and returns to the intro.
func (s *Session) Reset() error {
	if s.stage != StageResult && s.stage != StageFeedback {
		return fmt.Errorf("reset from %s: %w", s.stage, ErrWrongStage)
	}
	s.clear()
	return nil
}

// ─── VIEW ─────────────────────────────────────────────────────────────────────

// State is a read-only snapshot of a session for transports. Answers is keyed
// by KPI name and AnswersByQuestion by question ID.
type State struct {
	Stage             Stage              `json:"stage"`
	QuestionIndex     int                `json:"question_index"`
	TotalQuestions    int                `json:"total_questions"`
	Question          *Question          `json:"question,omitempty"`
	SliderValue       *float64           `json:"slider_value,omitempty"`
	Answers           map[string]float64 `json:"answers"`
	AnswersByQuestion map[string]float64 `json:"answers_by_question"`
	Score             *int               `json:"score,omitempty"`
	Category          scoring.Category   `json:"category,omitempty"`
	Explanation       *ai.Explanation    `json:"explanation,omitempty"`
	Accurate          *bool              `json:"accurate,omitempty"`
	ThankYou          bool               `json:"thank_you"`
}

// State returns a snapshot that shares no memory with the session.
func (s *Session) State() State {
	st := State{
		Stage:             s.stage,
		QuestionIndex:     s.current,
		TotalQuestions:    s.catalog.Len(),
		Answers:           s.answers.ToMap(),
		AnswersByQuestion: maps.Clone(s.byQuestion),
		ThankYou:          s.thankYou,
	}
	if s.stage == StageQuestions {
		if q, ok := s.catalog.Question(s.current); ok {
			st.Question = &q
			if q.Type == TypeSlider {
				v := s.slider
				st.SliderValue = &v
			}
		}
	}
	if s.result != nil {
		score := s.result.Score
		st.Score = &score
		st.Category = s.result.Category
	}
	if s.explanation != nil {
		e := *s.explanation
		st.Explanation = &e
	}
	if s.accurate != nil {
		a := *s.accurate
		st.Accurate = &a
	}
	return st
}
