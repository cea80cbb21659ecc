package pipeline

import "fmt"

const synthesisTemplate = `Create a product record for %q using only the source summaries below.

Include:
- name: the full product name
- description: a concise, neutral description of the product
- ratings: the average rating (0-5), the number of reviews and a short summary of what reviewers say
- whereToBuy: every purchase location mentioned, each with retailer, country, price (with currency) and url
- specifications: technical specifications as label/value pairs, for example {"label": "Weight", "value": "1.2 kg"}
- faq: common questions about the product with their answers

Every fact must come from the summaries. Do not invent retailers, prices, ratings or specifications.
When the summaries do not mention something, leave the text empty, use 0 for numbers and an empty array for lists.

Source summaries:

%s`

// BuildPrompt renders the synthesis instructions for productName grounded
// in the joined source summaries.
func BuildPrompt(productName, summaries string) string {
	if summaries == "" {
		summaries = "(no source summaries were available)"
	}
	return fmt.Sprintf(synthesisTemplate, productName, summaries)
}
