package mcpserver

// PersonFormatContract describes the canonical person record format that
// LLM consumers should follow when creating or updating records.
const PersonFormatContract = `# Othala Person Record Format Contract

Every person record stored in Othala MUST follow this structure.

## Structure

` + "```" + `markdown
---
type: person                        # REQUIRED – marks the file as a person record
id: p-arne-berg                     # canonical id; assigned on create if absent, NEVER edit or reuse
name: Arne Berg                     # REQUIRED – display name; may repeat across records
sex: M                              # OPTIONAL – M or F
born: 1920-03-14                    # OPTIONAL – date, year, or qualified date (ABT 1895, BEF 1900)
died: 1999                          # OPTIONAL – same formats as born
research: verified                  # OPTIONAL – free-form research status
father: "[[Gustav Berg]]"           # display half of a relationship pair
father_id: p-gustav-berg            # id half; authoritative when both are present
mother: "[[Ingrid Berg]]"
mother_id: p-ingrid-berg
spouses: ["[[Solveig Berg]]"]       # list slots hold zero or more references
spouse_ids: [p-solveig-berg]
children: ["[[Bjorn Berg]]"]
children_ids: [p-bjorn-berg]
---

Free-form research notes in standard Markdown.

Use [[wikilinks]] to reference other persons by display name.
` + "```" + `

## Rules

1. **YAML frontmatter is mandatory.** The ` + "```" + `---` + "```" + ` fences must be the first
   thing in the file (no leading blank lines).
2. **` + "`" + `name` + "`" + ` is required.** It is the display name everywhere; several people
   may legitimately share one.
3. **` + "`" + `id` + "`" + ` is the canonical identity.** It is stable for the life of the
   record. Never edit, reuse or copy an id between records. When two fields
   disagree, the ` + "`" + `_id` + "`" + ` field wins over the display name.
4. **Relationship slots come in pairs**: a display field (wikilink) and an
   ` + "`" + `_id` + "`" + ` field. Singular slots: ` + "`" + `father` + "`" + `, ` + "`" + `mother` + "`" + `. List slots: ` + "`" + `parents` + "`" + `,
   ` + "`" + `step_fathers` + "`" + `, ` + "`" + `step_mothers` + "`" + `, ` + "`" + `adoptive_fathers` + "`" + `, ` + "`" + `adoptive_mothers` + "`" + `,
   ` + "`" + `spouses` + "`" + `, ` + "`" + `children` + "`" + ` (ids: ` + "`" + `children_ids` + "`" + `, ` + "`" + `spouse_ids` + "`" + `, and so on).
5. **Relationships are reciprocal.** Declaring a father on one record implies
   a child entry on the other; the sync engine restores the missing side.
   Prefer the ` + "`" + `set_relationship` + "`" + ` tool over hand-editing slots so both sides
   stay consistent.
6. **Dates** accept ` + "`" + `YYYY` + "`" + `, ` + "`" + `YYYY-MM` + "`" + `, ` + "`" + `YYYY-MM-DD` + "`" + `, and the qualifiers
   ` + "`" + `ABT` + "`" + `, ` + "`" + `BEF` + "`" + `, ` + "`" + `AFT` + "`" + ` (e.g. ` + "`" + `ABT 1895` + "`" + `).
7. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes.
8. **Encoding** is UTF-8 with a trailing newline.

## Media

- Upload document scans and photos via the ` + "`" + `upload_media` + "`" + ` tool. It returns
  a ` + "`" + `markdownImage` + "`" + ` field ready to paste into the record body.
- Media files live in the shared ` + "`" + `media/` + "`" + ` directory (flat, no sub-folders).
- Reference them with the absolute path: ` + "`" + `![1920 census](/media/census-1920.png)` + "`" + `
- Supported formats: png, jpg, jpeg, gif, webp, pdf.

## Example

` + "```" + `markdown
---
type: person
id: p-arne-berg
name: Arne Berg
sex: M
born: 1920-03-14
died: 1999
research: verified
father: "[[Gustav Berg]]"
father_id: p-gustav-berg
spouses: ["[[Solveig Dahl]]"]
spouse_ids: [p-solveig-dahl]
---

# Arne Berg

Baker in Trondheim. Emigrated 1947, returned 1951.

![1920 census](/media/census-1920.png)

Sources: parish book 1920, [[Gustav Berg]] family bible.
` + "```" + `
`
