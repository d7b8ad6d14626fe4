package geminidev

import (
	"fmt"
)

const DefaultSystemInstruction = `You are 'Gemini-Dev', an expert AI coding assistant working in a command-line environment.
Prefer clear, concise and accurate code and explanations.
Put code in Markdown fenced code blocks tagged with their language (for example ` + "```python ... ```" + `).
When asked to create a project structure, answer strictly in this format:
FILE: path/to/your/file.ext
` + "```language" + `
# Content for the file goes here
` + "```" + `
Repeat this for every file. The FILE: line must be on its own line, directly before the code block.
Expect questions about Python, Go, CloudFormation and Terraform, Dockerfiles, shell scripts and AI/ML code.`

// AskPrompt embeds context (as produced by MessageFromFile or
// MessageFromURL) ahead of the user's prompt.
func AskPrompt(context, prompt string) string {
	if context == "" {
		return prompt
	}
	return fmt.Sprintf("%s\n--- USER PROMPT ---\n%s", context, prompt)
}

func CommitPrompt(diff string) string {
	return "Based on the following git diff, please generate one or more concise and informative commit message suggestions " +
		"following conventional commit standards (e.g., feat:, fix:, chore:, docs:, style:, refactor:, test:). " +
		"Provide only the commit message(s), each on a new line, without any preamble or explanation." +
		"\n\n--- GIT DIFF ---\n```diff\n" + diff + "\n```\n--- END DIFF ---"
}

func ProjectPrompt(description string) string {
	return fmt.Sprintf("Generate a basic project file structure for the following description: '%s'.\n", description) +
		"Strictly follow the output format from the system instructions: list each file to create " +
		"with its relative path prefixed by '" + FileMarker + " ' on its own line, followed immediately by a Markdown code block " +
		"containing the file's content. Include relevant files like source code, .gitignore and dependency manifests where applicable."
}
