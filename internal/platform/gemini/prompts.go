package gemini

// Prompt preambles keyed by generation task. Each prompt is followed by
// the request input serialized as JSON, and every task instructs the
// model to answer with a single JSON object so responses parse directly
// into step output.
var taskPrompts = map[string]string{
	"profile_analysis": `Analyze the candidate profile below. Identify core skills,
seniority level, notable achievements, and gaps. Respond with a single JSON object
with keys "skills", "seniority", "achievements", and "gaps".`,

	"job_parsing": `Parse the job posting below. Extract the role title, required
skills, preferred skills, responsibilities, and seniority level. Respond with a
single JSON object with keys "title", "required_skills", "preferred_skills",
"responsibilities", and "seniority".`,

	"job_analysis": `Compare the candidate profile and the job posting below. Score
how well the candidate matches and list matching and missing qualifications.
Respond with a single JSON object with keys "match_score" (0-100),
"matching_qualifications", and "missing_qualifications".`,

	"company_research": `Summarize what is known about the company described below:
its industry, culture signals, and recent direction. Respond with a single JSON
object with keys "industry", "culture", and "direction".`,

	"cv_draft": `Write a CV tailored to the analysis below. Use concise bullet
points and quantified achievements where the input provides numbers. Respond with
a single JSON object with keys "summary", "experience", "skills", and "education".`,

	"cover_letter_draft": `Write a cover letter tailored to the candidate profile,
job posting, and company research below. Keep it under 350 words and specific to
the role. Respond with a single JSON object with keys "greeting", "body", and
"closing".`,

	"content_review": `Review the generated document below for factual consistency
with the candidate profile, tone, and length. Respond with a single JSON object
with keys "approved" (boolean), "issues", and "revised_content" (null when no
revision is needed).`,
}

// genericPrompt covers tasks without a dedicated preamble.
const genericPrompt = `Complete the task named %q using the input below. Respond
with a single JSON object containing your result.`
