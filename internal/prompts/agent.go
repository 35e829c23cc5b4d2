package prompts

// EmptyResponseFallback is the user-facing message returned when the
// model never produces a plain reply before the round limit is hit.
const EmptyResponseFallback = "I wasn't able to complete that request. Please try again."
