package config

import "testing"

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("RAG_OVERFETCH_FACTOR", "")
	t.Setenv("RAG_FUSION_RRF_K", "")
	t.Setenv("RAG_SEMANTIC_WEIGHT", "")
	t.Setenv("RAG_LEXICAL_WEIGHT", "")
	t.Setenv("RAG_MMR_LAMBDA", "")

	cfg := Load()
	if cfg.RAGOverfetchFactor != 3 {
		t.Fatalf("expected default overfetch factor 3, got %d", cfg.RAGOverfetchFactor)
	}
	if cfg.RAGFusionRRFK != 60 {
		t.Fatalf("expected default fusion rrf k 60, got %d", cfg.RAGFusionRRFK)
	}
	if cfg.RAGSemanticWeight != 0.6 {
		t.Fatalf("expected default semantic weight 0.6, got %v", cfg.RAGSemanticWeight)
	}
	if cfg.RAGLexicalWeight != 0.4 {
		t.Fatalf("expected default lexical weight 0.4, got %v", cfg.RAGLexicalWeight)
	}
	if cfg.RAGMMRLambda != 0.7 {
		t.Fatalf("expected default mmr lambda 0.7, got %v", cfg.RAGMMRLambda)
	}
}

func TestLoadParsesRetrievalOverrides(t *testing.T) {
	t.Setenv("RAG_OVERFETCH_FACTOR", "5")
	t.Setenv("RAG_FUSION_RRF_K", "75")
	t.Setenv("RAG_SEMANTIC_WEIGHT", "0.8")
	t.Setenv("RAG_MMR_LAMBDA", "0.5")

	cfg := Load()
	if cfg.RAGOverfetchFactor != 5 {
		t.Fatalf("expected overfetch factor 5, got %d", cfg.RAGOverfetchFactor)
	}
	if cfg.RAGFusionRRFK != 75 {
		t.Fatalf("expected fusion rrf k 75, got %d", cfg.RAGFusionRRFK)
	}
	if cfg.RAGSemanticWeight != 0.8 {
		t.Fatalf("expected semantic weight 0.8, got %v", cfg.RAGSemanticWeight)
	}
	if cfg.RAGMMRLambda != 0.5 {
		t.Fatalf("expected mmr lambda 0.5, got %v", cfg.RAGMMRLambda)
	}
}

func TestLoadFallsBackOnUnparseableValues(t *testing.T) {
	t.Setenv("API_RATE_LIMIT_RPS", "beaucoup")
	t.Setenv("API_RATE_LIMIT_BURST", "x")

	cfg := Load()
	if cfg.APIRateLimitRPS != 10 {
		t.Fatalf("expected rate limit rps fallback 10, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.APIRateLimitBurst != 20 {
		t.Fatalf("expected rate limit burst fallback 20, got %d", cfg.APIRateLimitBurst)
	}
}
