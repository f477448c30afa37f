package domain

// PipelineTuning is the process-wide retrieval tuning, fixed at startup.
// Per-request knobs live in PipelineConfig. Zero fields are replaced by
// defaults in the pipeline constructor.
type PipelineTuning struct {
	OverfetchFactor     int     `json:"overfetch_factor"`
	RRFConstant         int     `json:"rrf_constant"`
	SemanticWeight      float64 `json:"semantic_weight"`
	LexicalWeight       float64 `json:"lexical_weight"`
	MMRLambda           float64 `json:"mmr_lambda"`
	RerankMaxPassage    int     `json:"rerank_max_passage"`
	RerankDefaultScore  float64 `json:"rerank_default_score"`
	CompressMinLength   int     `json:"compress_min_length"`
	CompressMaxContent  int     `json:"compress_max_content"`
	CompressMinResult   int     `json:"compress_min_result"`
	CompressMaxPassages int     `json:"compress_max_passages"`
	RewriteContextTurns int     `json:"rewrite_context_turns"`
	RewriteTurnChars    int     `json:"rewrite_turn_chars"`
	RewriteMaxContext   int     `json:"rewrite_max_context"`
	MaxContextChars     int     `json:"max_context_chars"`
	MetaContextChars    int     `json:"meta_context_chars"`
}
