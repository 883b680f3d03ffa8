package render

import "strings"

const stylesheet = `<style>
.kbdoc-doc{font-family:system-ui,-apple-system,"Segoe UI",Roboto,sans-serif;color:#1f2933;line-height:1.55;max-width:960px;margin:0 auto}
.kbdoc-header{border-bottom:2px solid #e4e7eb;margin-bottom:1.25rem;padding-bottom:.75rem}
.kbdoc-label{text-transform:uppercase;letter-spacing:.08em;font-size:.75rem;color:#7b8794;margin:0}
.kbdoc-brief{font-size:1.5rem;margin:.25rem 0 0}
.kbdoc-intro{font-size:1.05rem}
.kbdoc-highlights ul{padding-left:1.25rem}
.kbdoc-highlight{margin:.35rem 0}
.kbdoc-cards{display:grid;grid-template-columns:repeat(auto-fit,minmax(220px,1fr));gap:1rem;margin:1.5rem 0}
.kbdoc-card{border-radius:8px;padding:1rem;border-top:4px solid #9aa5b1;background:#f5f7fa}
.kbdoc-card h3{font-size:1rem;margin:0 0 .5rem}
.kbdoc-card h3 a{color:inherit;text-decoration:none}
.kbdoc-card-blue{border-top-color:#2680c2}
.kbdoc-card-green{border-top-color:#3ebd93}
.kbdoc-card-amber{border-top-color:#f0b429}
.kbdoc-card-violet{border-top-color:#8662c7}
.kbdoc-card-slate{border-top-color:#52606d}
.kbdoc-quote{border-left:3px solid #cbd2d9;margin:.75rem 0;padding:.25rem 1rem;color:#3e4c59}
.kbdoc-cite{font-size:.75rem}
.kbdoc-sources ol{font-size:.9rem;word-break:break-all}
.kbdoc-empty,.kbdoc-notice{padding:1rem;background:#fffbea;border:1px solid #f7d070;border-radius:6px}
@media (max-width:600px){.kbdoc-cards{grid-template-columns:1fr}}
</style>
`

func writeStyle(b *strings.Builder) {
	b.WriteString(stylesheet)
}
