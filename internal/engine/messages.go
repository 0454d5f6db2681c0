package engine

// WelcomeMessage seeds every conversation and is shown without animation.
const WelcomeMessage = `# Hello, Welcome to Vivum AI 👋

I'm your research assistant, ready to help you explore and analyze scientific literature. You can ask me about:

- **Research Papers**: Find and analyze papers from PubMed, Scopus, and other databases
- **Literature Reviews**: Get comprehensive overviews of specific topics
- **Clinical Trials**: Stay updated on the latest medical research
- **Data Analysis**: Extract insights from research findings

What would you like to explore today?`

// ErrorMessage is shown in place of an answer that could not be resolved.
const ErrorMessage = `**Something went wrong while searching the literature.**

Please try your question again in a moment.`
