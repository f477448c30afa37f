package usecase

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tbocquet/course-rag-assistant/internal/core/domain"
)

// Prompts are written without accents on purpose: the course corpus is
// French but some embedding and chat models mangle accented prompt text.

const systemPromptTemplate = `Tu es un assistant pedagogique expert pour un etudiant en Master 1 Informatique
a l'Universite de Bourgogne. Tu reponds en francais de maniere claire,
structuree et pedagogique.

Regles :
1. Base tes reponses PRINCIPALEMENT sur le contexte fourni (extraits de cours).
   Quand tu utilises une information du contexte, cite la source (matiere, type).
2. Tu peux completer avec des connaissances generales en informatique si elles
   sont coherentes avec le contexte et necessaires pour une reponse pedagogique.
   Dans ce cas precise : "De maniere generale en informatique, ..."
3. Si le contexte ne contient PAS d'information sur le sujet, dis-le clairement
   puis donne une reponse generale en le signalant.
4. Structure tes reponses avec des titres (##), listes a puces, et code si pertinent.
5. Utilise des exemples concrets et des explications progressives.
6. Pour les exercices : guide etape par etape (methode socratique).
7. Fais des liens entre matieres quand c'est pertinent.
8. Termine par 1-2 questions pour approfondir.

Contexte des cours (extraits indexes) :
%s`

// noSourcesMarker goes into the generation prompt when retrieval found
// nothing, so the model says so instead of inventing citations.
const noSourcesMarker = "(aucun extrait de cours pertinent n'a ete trouve dans l'index)"

// compressRejectMarker is the exact sentinel the compression prompt
// asks for when a passage is off-topic.
const compressRejectMarker = "NON_PERTINENT"

const contextSeparator = "\n\n---\n\n"

func systemPrompt(context string) string {
	return fmt.Sprintf(systemPromptTemplate, context)
}

func buildRewritePrompt(question, chatContext string) string {
	var b strings.Builder
	b.WriteString("Tu es un expert en reformulation de requetes pour un systeme RAG ")
	b.WriteString("universitaire (Master 1 Informatique). ")
	b.WriteString("Ton role est de reformuler la question de l'utilisateur pour ameliorer ")
	b.WriteString("la recherche dans une base de cours.\n\n")
	b.WriteString("Regles :\n")
	b.WriteString("1. Garde le sens original de la question\n")
	b.WriteString("2. Ajoute des synonymes et termes techniques pertinents\n")
	b.WriteString("3. Developpe les acronymes si necessaire\n")
	b.WriteString("4. Si la question est vague, precise-la\n")
	b.WriteString("5. Genere une version enrichie de la requete\n\n")
	b.WriteString("Reponds UNIQUEMENT avec un JSON :\n")
	b.WriteString(`{"rewritten": "question reformulee", "keywords": ["mot1", "mot2", ...]}`)
	b.WriteString("\n\nQuestion originale : ")
	b.WriteString(question)
	b.WriteString("\n\nContexte de la conversation (si disponible) :\n")
	b.WriteString(chatContext)
	b.WriteString("\n\nReformule cette question pour optimiser la recherche.")
	return b.String()
}

func buildRerankPrompt(query string, passages []string) string {
	var b strings.Builder
	b.WriteString("Tu es un evaluateur de pertinence. Pour chaque passage numerote, ")
	b.WriteString("donne un score de 0 a 10 indiquant s'il est pertinent pour repondre ")
	b.WriteString("a la question.\n\n")
	b.WriteString("Reponds UNIQUEMENT avec un JSON : ")
	b.WriteString(`{"scores": [note1, note2, ...]}`)
	b.WriteString(" avec exactement un score par passage, dans l'ordre.\n\n")
	b.WriteString("Question : ")
	b.WriteString(query)
	b.WriteString("\n")
	for i, passage := range passages {
		fmt.Fprintf(&b, "\nPassage %d :\n%s\n", i+1, passage)
	}
	b.WriteString("\nScores de pertinence (0-10) :")
	return b.String()
}

func buildCompressPrompt(question, content string) string {
	var b strings.Builder
	b.WriteString("Tu es un assistant qui filtre et compresse des extraits de cours. ")
	b.WriteString("Etant donne une question et un extrait de document, extrais UNIQUEMENT ")
	b.WriteString("les passages directement pertinents pour repondre a la question.\n\n")
	b.WriteString("Regles :\n")
	b.WriteString("1. Garde le contenu factuel tel quel (ne reformule pas)\n")
	b.WriteString("2. Supprime les parties non pertinentes\n")
	b.WriteString("3. Si l'extrait est completement hors sujet, reponds 'NON_PERTINENT'\n")
	b.WriteString("4. Garde les formules, definitions, et exemples lies a la question\n\n")
	b.WriteString("Question : ")
	b.WriteString(question)
	b.WriteString("\n\nExtrait du document :\n")
	b.WriteString(content)
	b.WriteString("\n\nExtrais les passages pertinents :")
	return b.String()
}

// assembleContext joins passages with a visible separator, bounded by
// the hard context cap.
func assembleContext(candidates []domain.Candidate, maxChars int) string {
	if len(candidates) == 0 {
		return ""
	}
	parts := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		parts = append(parts, cand.Chunk.Text)
	}
	return truncateRunes(strings.Join(parts, contextSeparator), maxChars)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
