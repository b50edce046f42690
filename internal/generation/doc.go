// Package generation defines the boundary between the job pipeline and
// external AI/LLM services. Pipeline step handlers depend only on the
// Generator interface, so the application core never couples to a
// specific provider (Gemini today).
package generation
