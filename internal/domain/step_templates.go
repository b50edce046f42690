package domain

// StepDefinition describes one entry of a job type's fixed pipeline.
type StepDefinition struct {
	Name        string
	Order       int
	Description string
}

// Step templates per job type. Order values start at 1 and define
// execution order. Handlers execute exactly these steps, in this order.
var (
	cvGenerationSteps = []StepDefinition{
		{Name: "profile_analysis", Order: 1, Description: "Analyzing user profile"},
		{Name: "job_analysis", Order: 2, Description: "Analyzing job requirements"},
		{Name: "content_generation", Order: 3, Description: "Generating CV content"},
		{Name: "template_application", Order: 4, Description: "Applying template styling"},
		{Name: "pdf_generation", Order: 5, Description: "Generating PDF document"},
		{Name: "quality_check", Order: 6, Description: "Quality assurance check"},
		{Name: "delivery", Order: 7, Description: "Preparing for delivery"},
	}

	coverLetterGenerationSteps = []StepDefinition{
		{Name: "company_research", Order: 1, Description: "Researching company information"},
		{Name: "profile_analysis", Order: 2, Description: "Analyzing user profile"},
		{Name: "content_generation", Order: 3, Description: "Writing cover letter content"},
		{Name: "template_application", Order: 4, Description: "Applying template formatting"},
		{Name: "pdf_generation", Order: 5, Description: "Generating PDF document"},
		{Name: "quality_review", Order: 6, Description: "Quality review and validation"},
		{Name: "delivery", Order: 7, Description: "Preparing for delivery"},
	}

	jobAnalysisSteps = []StepDefinition{
		{Name: "job_parsing", Order: 1, Description: "Parsing job description"},
		{Name: "requirement_extraction", Order: 2, Description: "Extracting requirements"},
		{Name: "skill_matching", Order: 3, Description: "Matching skills and experience"},
		{Name: "compatibility_scoring", Order: 4, Description: "Calculating compatibility score"},
		{Name: "recommendation_generation", Order: 5, Description: "Generating recommendations"},
	}

	bulkGenerationSteps = []StepDefinition{
		{Name: "job_validation", Order: 1, Description: "Validating job requests"},
		{Name: "queue_preparation", Order: 2, Description: "Preparing individual jobs"},
		{Name: "batch_processing", Order: 3, Description: "Processing job batch"},
		{Name: "result_compilation", Order: 4, Description: "Compiling results"},
		{Name: "notification", Order: 5, Description: "Sending notifications"},
	}
)

// StepTemplate returns the ordered step definitions for the given job
// type, or nil for an unknown type.
func StepTemplate(jobType JobType) []StepDefinition {
	switch jobType {
	case JobTypeCVGeneration:
		return cvGenerationSteps
	case JobTypeCoverLetterGeneration:
		return coverLetterGenerationSteps
	case JobTypeJobAnalysis:
		return jobAnalysisSteps
	case JobTypeBulkGeneration:
		return bulkGenerationSteps
	default:
		return nil
	}
}
