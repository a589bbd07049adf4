package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"job-matcher/internal/config"
	"job-matcher/internal/models"
	"job-matcher/internal/repositories"
	"job-matcher/internal/services"
)

// Ingests a directory of resume PDFs: extracts text, generates an embedding,
// stores the record in Postgres and upserts the vector into Qdrant.
//
// Usage: go run scripts/ingest_resumes.go <pdf_dir> <industry_code>
func main() {
	if len(os.Args) < 3 {
		log.Fatalf("Usage: %s <pdf_dir> <industry_code>", os.Args[0])
	}
	pdfDir := os.Args[1]
	industryCode := os.Args[2]

	log.Println("🚀 Starting resume ingestion...")

	// Load configuration
	cfg := config.Load()

	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}
	resumeRepo := repositories.NewResumeRepository(db)

	ctx := context.Background()

	geminiService, err := services.NewGeminiService(ctx, &cfg.Gemini)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini: %v", err)
	}

	qdrantService, err := services.NewQdrantService(&cfg.Qdrant)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
	}

	if err := qdrantService.InitCollection(ctx); err != nil {
		log.Fatalf("❌ Failed to initialize collection: %v", err)
	}

	pdfParser := services.NewPDFParserService()

	entries, err := os.ReadDir(pdfDir)
	if err != nil {
		log.Fatalf("❌ Failed to read directory %s: %v", pdfDir, err)
	}

	successCount := 0
	failCount := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		path := filepath.Join(pdfDir, entry.Name())
		candidateName := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))

		log.Printf("\n📄 Processing: %s", entry.Name())

		// Extract text from PDF
		text, err := pdfParser.ExtractText(path)
		if err != nil {
			log.Printf("   ❌ Failed to extract text: %v", err)
			failCount++
			continue
		}
		log.Printf("   ✅ Extracted %d characters", len(text))

		// Generate embedding
		embedding, err := geminiService.GenerateEmbedding(ctx, text)
		if err != nil {
			log.Printf("   ❌ Failed to generate embedding: %v", err)
			failCount++
			continue
		}

		encoded, err := models.EncodeVector(embedding)
		if err != nil {
			log.Printf("   ❌ Failed to encode embedding: %v", err)
			failCount++
			continue
		}

		fields, err := json.Marshal(map[string]string{"raw_text": text})
		if err != nil {
			log.Printf("   ❌ Failed to encode fields: %v", err)
			failCount++
			continue
		}

		resume := &models.ResumeRecord{
			ID:            uuid.New(),
			FilePath:      path,
			CandidateName: candidateName,
			IndustryCode:  industryCode,
			Fields:        fields,
			Embedding:     encoded,
		}

		if err := resumeRepo.Create(resume); err != nil {
			log.Printf("   ❌ Failed to store resume record: %v", err)
			failCount++
			continue
		}

		if err := qdrantService.UpsertResume(ctx, resume, embedding); err != nil {
			log.Printf("   ❌ Failed to upsert vector: %v", err)
			failCount++
			continue
		}

		log.Printf("   ✅ Ingested %s (%s)", candidateName, resume.ID)
		successCount++
	}

	// Summary
	log.Println("\n" + strings.Repeat("=", 60))
	log.Printf("📊 Ingestion Summary:")
	log.Printf("   ✅ Successful: %d resumes", successCount)
	log.Printf("   ❌ Failed: %d resumes", failCount)
	log.Println(strings.Repeat("=", 60))

	if failCount > 0 {
		os.Exit(1)
	}
}
