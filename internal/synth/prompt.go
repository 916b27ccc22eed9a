package synth

import "strings"

// SystemPrompt frames the model as a Falco rule author.
const SystemPrompt = `You are a security engineer who writes Falco detection rules.
You read Falco alerts and answer with rules that detect the same activity.`

const rulePromptTemplate = `Write a Falco rule that detects the activity in this Falco alert.

ALERT:
{{event}}

Constraints:
1. Match the specific process and the file or network activity named in the alert.
2. Answer with YAML only. No Markdown fences, no prose.
3. Use exactly the keys rule, desc, condition, output and priority.
4. Set priority to WARNING.
5. Reference fields in output as %field.name. Never close a field with % and never index it with [.
6. Give the rule a unique, descriptive name such as "Block <process> accessing <file>".

Format:
- rule: Rule Name
  desc: Description
  condition: ...
  output: ...
  priority: WARNING`

// RulePrompt embeds a serialized event into the rule generation prompt.
func RulePrompt(serializedEvent string) string {
	return strings.Replace(rulePromptTemplate, "{{event}}", serializedEvent, 1)
}
