package summarizer

// --- Segment prompts ---
const SegmentSystemPrompt = "You are a helpful assistant that creates concise, informative summaries of video transcripts. Focus on key points, main arguments, and actionable insights."
const SegmentUserPrompt = "Please provide a clear, structured summary of this video transcript:\n\n%s"

// --- Combiner prompts ---
const CombineSystemPrompt = "You are a helpful assistant that combines multiple summary segments into a single, coherent summary. Maintain the key points while removing redundancy."
const CombineUserPrompt = "Please combine these summary segments into one comprehensive summary:\n\n%s"

// summarySeparator joins segment summaries before the combine call
const summarySeparator = "\n\n"
