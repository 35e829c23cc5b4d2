package prompts

import "strings"

// baseSystemTemplate is the default system prompt for LEO as a
// personal-assistant voice agent. Persona, tool, and memory sections
// are appended by SystemPrompt.
const baseSystemTemplate = `You are LEO, a personal assistant with persistent memory and a persistent personality.

## When to Use Tools
Only use tools when the user asks you to DO something or CHECK something specific:
- "Turn on the light" → use homeassistant.set_lights
- "What's the forecast?" → use weather.forecast
- "Remind me at 5" → use reminders.create

Do NOT use tools for greetings, thanks, or questions about yourself — respond directly.

## Rules
- Keep responses short for actions: "Done" or the result.
- Be conversational for chat — you don't need tools for every message.`

// toolProtocolTemplate tells the model how to emit tool calls when the
// backend does not support native function calling. The dispatch loop
// accepts exactly these shapes.
const toolProtocolTemplate = `

## Tool Call Format
When you need a tool, respond with ONLY a JSON object, no prose around it:
  {"type":"tool_call","tool":"<name>","arguments":{...}}
For several tools at once (executed in order):
  {"type":"multi_tool_call","calls":[{"tool":"<name>","arguments":{...}}, ...]}
For a normal answer:
  {"type":"reply","text":"..."}
Plain text without JSON is also treated as a normal answer.`

// SpeechFriendlyReminder keeps replies usable by a TTS front end. It is
// appended to every system prompt.
const SpeechFriendlyReminder = `

## Voice Output
Your replies may be spoken aloud. Use plain sentences: no markdown, no
bullet lists, no URLs read out character by character. Spell numbers and
units the way a person would say them.`

// SystemPrompt assembles the full system prompt for a turn. personaBlock
// is the compiled persona summary consumed verbatim; memoryContext is an
// optional block of recalled facts and episodes; toolNames lists the
// registered tools so the model does not invent names.
func SystemPrompt(personaBlock, memoryContext string, toolNames []string) string {
	var sb strings.Builder
	sb.WriteString(baseSystemTemplate)

	if personaBlock != "" {
		sb.WriteString("\n\n## Personality\nStay in character. This is who you are right now:\n")
		sb.WriteString(strings.TrimRight(personaBlock, "\n"))
	}

	if memoryContext != "" {
		sb.WriteString("\n\n## What You Remember\n")
		sb.WriteString(strings.TrimRight(memoryContext, "\n"))
	}

	if len(toolNames) > 0 {
		sb.WriteString("\n\n## Available Tools\n")
		sb.WriteString(strings.Join(toolNames, ", "))
		sb.WriteString(toolProtocolTemplate)
	}

	sb.WriteString(SpeechFriendlyReminder)
	return sb.String()
}
