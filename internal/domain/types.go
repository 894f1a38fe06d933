package domain

// SessionState models the assistant's interaction lifecycle.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateListening SessionState = "listening"
	SessionStateThinking  SessionState = "thinking"
	SessionStateSpeaking  SessionState = "speaking"
	SessionStateError     SessionState = "error"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady               SessionStateReason = "ready"
	SessionReasonListeningStarted    SessionStateReason = "listening_started"
	SessionReasonListeningRestarted  SessionStateReason = "listening_restarted"
	SessionReasonTranscribing        SessionStateReason = "transcribing"
	SessionReasonListeningDiscarded  SessionStateReason = "listening_discarded"
	SessionReasonNoTranscript        SessionStateReason = "no_transcript"
	SessionReasonTranscriptionFailed SessionStateReason = "transcription_failed"
	SessionReasonRulesFailed         SessionStateReason = "rules_failed"
	SessionReasonThinking            SessionStateReason = "thinking"
	SessionReasonLocalCommand        SessionStateReason = "local_command"
	SessionReasonAssistantReply      SessionStateReason = "assistant_reply"
	SessionReasonWakePhrase          SessionStateReason = "wake_phrase"
	SessionReasonMuted               SessionStateReason = "muted"
	SessionReasonChatFailed          SessionStateReason = "chat_failed"
	SessionReasonSpeechFinished      SessionStateReason = "speech_finished"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeAudioStop     ErrorCode = "audio_stop"
	ErrorCodeAudioStream   ErrorCode = "audio_stream"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeRules         ErrorCode = "rules"
	ErrorCodeChat          ErrorCode = "chat"
	ErrorCodeAppLaunch     ErrorCode = "app_launch"
	ErrorCodeNotification  ErrorCode = "notification"
)

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental transcription output from a provider.
type TranscriptEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
}

// Reply is the outcome of handling one utterance.
type Reply struct {
	Utterance string         `json:"utterance"`
	Text      string         `json:"text"`
	Local     bool           `json:"local"`
	Wake      bool           `json:"wake,omitempty"`
	Action    *CommandAction `json:"action,omitempty"`
	Failed    bool           `json:"failed,omitempty"`
}

// StopResult is returned once listening is stopped and the utterance is handled.
type StopResult struct {
	RawTranscript   string `json:"rawTranscript"`
	FinalTranscript string `json:"finalTranscript"`
	Reply           Reply  `json:"reply"`
}

// Status summarizes the current runtime status.
type Status struct {
	State      SessionState `json:"state"`
	Active     bool         `json:"active"`
	SearchMode bool         `json:"searchMode"`
	Muted      bool         `json:"muted"`
	Message    string       `json:"message,omitempty"`
}
